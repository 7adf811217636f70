package gee

import (
	"fmt"
	"strings"
)

type node struct {
	pattern  string  //完整路由，只有叶子节点非空，如 /api/v1/links/:code
	part     string  //路由的一段，如 :code
	children []*node //子节点：静态段在前，通配段在后
	isWild   bool    //part 以 : 或 * 开头
}

func (n *node) matchChild(part string) *node {
	for _, child := range n.children {
		if child.part == part {
			return child
		}
	}
	return nil
}

// matchChildren 返回可能匹配的子节点，静态段优先，
// 所以 /healthz 不会被 /:code 吃掉。
func (n *node) matchChildren(part string) []*node {
	nodes := make([]*node, 0, len(n.children))
	for _, child := range n.children {
		if !child.isWild && child.part == part {
			nodes = append(nodes, child)
		}
	}
	for _, child := range n.children {
		if child.isWild {
			nodes = append(nodes, child)
		}
	}
	return nodes
}

func (n *node) insert(pattern string, parts []string, height int) {
	if len(parts) == height {
		if n.pattern != "" && n.pattern != pattern {
			panic(fmt.Sprintf("gee: route %q conflicts with %q", pattern, n.pattern))
		}
		n.pattern = pattern
		return
	}
	part := parts[height]
	child := n.matchChild(part)
	if child == nil {
		isWild := part[0] == ':' || part[0] == '*'
		// 同一层只允许一个参数名，否则 /:code 和 /:id 会互相遮蔽
		if isWild {
			for _, c := range n.children {
				if c.isWild {
					panic(fmt.Sprintf("gee: wildcard %q in %q conflicts with %q", part, pattern, c.part))
				}
			}
		}
		child = &node{part: part, isWild: isWild}
		n.children = append(n.children, child)
	}
	child.insert(pattern, parts, height+1)
}

func (n *node) search(parts []string, height int) *node {
	if len(parts) == height || strings.HasPrefix(n.part, "*") {
		if n.pattern == "" {
			return nil
		}
		return n
	}

	part := parts[height]
	for _, child := range n.matchChildren(part) {
		if result := child.search(parts, height+1); result != nil {
			return result
		}
	}
	return nil
}
