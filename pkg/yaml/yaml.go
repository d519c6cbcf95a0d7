package yaml

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

func Unmarshal(in []byte, out any) error {
	return yaml.Unmarshal(in, out)
}

func Encode(v any, indent int) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	e := yaml.NewEncoder(b)
	e.SetIndent(indent)

	if err := e.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Patch sets key to value in the mapping found by path, without breaking
// the formatting and comments of the other lines. Missing parents are
// created. Nil value removes the key.
func Patch(src []byte, key string, value any, path ...string) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, err
	}

	var dst []byte
	var err error

	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		// empty file or only comments
		if value == nil {
			return src, nil
		}
		dst, err = appendEnd(src, nest(key, value, path))
	} else if parent, rest := lookup(root.Content[0], path); len(rest) == 0 {
		dst, err = setKey(src, parent, key, value)
	} else if value == nil {
		return src, nil
	} else {
		// rest[0] is missing or is not a mapping
		dst, err = setKey(src, parent, rest[0], nest(key, value, rest[1:]))
	}

	if err != nil {
		return nil, err
	}

	// result must stay a valid config
	if err = yaml.Unmarshal(dst, map[string]any{}); err != nil {
		return nil, err
	}

	return dst, nil
}

// lookup returns the deepest existing mapping on the path and the rest
// of the path
func lookup(node *yaml.Node, path []string) (*yaml.Node, []string) {
	for i, name := range path {
		_, child := findChild(node, name)
		if child == nil || child.Kind != yaml.MappingNode {
			return node, path[i:]
		}
		node = child
	}
	return node, nil
}

func nest(key string, value any, path []string) map[string]any {
	v := map[string]any{key: value}
	for i := len(path) - 1; i >= 0; i-- {
		v = map[string]any{path[i]: v}
	}
	return v
}

func findChild(node *yaml.Node, name string) (key, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

func lastChild(node *yaml.Node) *yaml.Node {
	if len(node.Content) == 0 {
		return node
	}
	return lastChild(node.Content[len(node.Content)-1])
}

func setKey(src []byte, parent *yaml.Node, key string, value any) ([]byte, error) {
	var put []byte
	if value != nil {
		var err error
		if put, err = Encode(map[string]any{key: value}, 2); err != nil {
			return nil, err
		}
	}

	if nodeKey, nodeValue := findChild(parent, key); nodeKey != nil {
		put = addIndent(put, nodeKey.Column-1)
		i0 := lineOffset(src, nodeKey.Line)
		i1 := lineOffset(src, lastChild(nodeValue).Line+1)
		return splice(src, i0, i1, put), nil
	}

	if value == nil {
		return src, nil
	}

	if len(parent.Content) == 0 {
		return nil, errors.New("yaml: can't patch empty mapping")
	}

	put = addIndent(put, parent.Content[0].Column-1)
	i := lineOffset(src, lastChild(parent).Line+1)
	return splice(src, i, i, put), nil
}

func appendEnd(src []byte, v any) ([]byte, error) {
	put, err := Encode(v, 2)
	if err != nil {
		return nil, err
	}
	return splice(src, -1, -1, put), nil
}

// splice replaces src[i0:i1] with put, negative index is the end of src
func splice(src []byte, i0, i1 int, put []byte) []byte {
	if i0 < 0 {
		i0 = len(src)
	}
	if i1 < 0 {
		i1 = len(src)
	}

	dst := make([]byte, 0, len(src)+len(put)+1)
	dst = append(dst, src[:i0]...)
	if n := len(dst); n > 0 && dst[n-1] != '\n' && put != nil {
		dst = append(dst, '\n')
	}
	dst = append(dst, put...)
	return append(dst, src[i1:]...)
}

func addIndent(src []byte, indent int) (dst []byte) {
	pre := bytes.Repeat([]byte{' '}, indent)
	for len(src) > 0 {
		dst = append(dst, pre...)
		i := bytes.IndexByte(src, '\n') + 1
		if i == 0 {
			return append(dst, src...)
		}
		dst = append(dst, src[:i]...)
		src = src[i:]
	}
	return
}

// lineOffset returns the offset of the line (starting from 1) or -1
func lineOffset(b []byte, line int) (offset int) {
	for l := 1; ; l++ {
		if l == line {
			return offset
		}

		i := bytes.IndexByte(b[offset:], '\n') + 1
		if i == 0 {
			return -1
		}
		offset += i
	}
}
