package shortlink

import (
	"errors"
	"sync"

	"github.com/sqids/sqids-go"
)

var (
	sq   *sqids.Sqids
	once sync.Once
)

var ErrInvalidID = errors.New("invalid link id")

func getSqids() *sqids.Sqids {
	once.Do(func() {
		var err error
		sq, err = sqids.New(sqids.Options{
			Alphabet:  "k3G7QAe51FCsiWrNOYBUwM6XzZvdLT4j9JhyHKg2cVbxfERq0mSoI8lDpunPat",
			MinLength: 8,
		})
		if err != nil {
			panic("sqids init failed: " + err.Error())
		}
	})
	return sq
}

// EncodeID 把存储层的自增主键编码成对外的不透明 ID，避免暴露行号、被枚举。
func EncodeID(id int64) (string, error) {
	if id < 0 {
		return "", ErrInvalidID
	}
	return getSqids().Encode([]uint64{uint64(id)})
}
