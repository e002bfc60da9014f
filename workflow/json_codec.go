package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// JSONCodec 上下文使用的json编解码
type JSONCodec interface {
	// Decode 解析顶层为 object 的 json, 其他结构返回错误
	Decode(data string) (map[string]any, error)
	// Encode 序列化任意值, nil 序列化为 null
	Encode(v any) (string, error)
}

var defaultJSONCodec JSONCodec = stdJSONCodec{}

type stdJSONCodec struct{}

func (stdJSONCodec) Decode(data string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	// 数字保持原始文本, 避免 float64 丢失精度
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, errors.WithMessage(err, "decode json object failed")
	}
	if m == nil {
		return nil, errors.New("json is null, not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level json object")
	}
	return m, nil
}

func (stdJSONCodec) Encode(v any) (s string, err error) {
	// 自定义 MarshalJSON panic 时 encoding/json 会继续往上抛
	defer func() {
		if r := recover(); r != nil {
			s, err = "", errors.Wrapf(ErrContextEncodeFailed, "encode %T panic: %v", v, r)
		}
	}()
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrapf(ErrContextEncodeFailed, "encode %T failed, err: %v", v, err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// stringifyJSONValue 把解析出来的json值转成字符串, 第二个返回值表示是否为 null
func stringifyJSONValue(codec JSONCodec, v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return val, false
	case json.Number:
		return val.String(), false
	case bool:
		return strconv.FormatBool(val), false
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), false
	default:
		// object / array 保留json文本
		s, err := codec.Encode(val)
		if err != nil {
			return fmt.Sprint(val), false
		}
		return s, false
	}
}
