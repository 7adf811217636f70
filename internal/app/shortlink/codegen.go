package shortlink

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
)

// alphabet 是短码字符集（Base62）。
// 默认长度 6 时空间为 62^6 ≈ 5.6e10，碰撞概率可以忽略，因此重试不设上限。
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const DefaultCodeLength = 6

var alphabetSize = big.NewInt(int64(len(alphabet)))

// CodeGenerator 负责生成唯一短码或校验自定义别名。
// 它只读存储（存在性查询），从不写入。
type CodeGenerator struct {
	store  Store
	length int
	known  CodeSet
}

// NewCodeGenerator 创建生成器。length <= 0 时使用 DefaultCodeLength；known 可为 nil。
func NewCodeGenerator(store Store, length int, known CodeSet) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{store: store, length: length, known: known}
}

// GenerateRandomCode 随机生成短码，直到存储确认该候选未被任何链接占用。
//
// known（布隆过滤器）只用来跳过“可能已占用”的候选；
// 它说“不存在”时仍然要查库确认，存储才是最终裁决者。
func (g *CodeGenerator) GenerateRandomCode(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := randomCode(g.length)
		if err != nil {
			return "", err
		}
		if g.known != nil && g.known.MightExist(code) {
			continue
		}
		used, err := g.store.Exists(ctx, code)
		if err != nil {
			return "", storeErr(err)
		}
		if !used {
			return code, nil
		}
		if g.known != nil {
			g.known.Add(code)
		}
	}
}

// ResolveAliasOrGenerate 有别名时校验并原样返回，没有时生成随机短码。
//
// 别名与系统短码共享同一个命名空间，所以两种查询都要做。
func (g *CodeGenerator) ResolveAliasOrGenerate(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		return g.GenerateRandomCode(ctx)
	}
	if err := ValidateCode(alias); err != nil {
		return "", err
	}
	if _, err := g.store.FindByAlias(ctx, alias); err == nil {
		return "", ErrAliasInUse
	} else if !errors.Is(err, ErrNotFound) {
		return "", storeErr(err)
	}
	used, err := g.store.Exists(ctx, alias)
	if err != nil {
		return "", storeErr(err)
	}
	if used {
		return "", ErrAliasInUse
	}
	return alias, nil
}

// Remember 把新创建的短码记入 known。
func (g *CodeGenerator) Remember(code string) {
	if g.known != nil {
		g.known.Add(code)
	}
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
