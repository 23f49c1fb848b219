package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// EncodeGob はvをgob形式でwに書き込みます。
//
// 前処理ステップの学習済み状態（語彙、IDF、標準化統計量）はこの形式で保存されます。
// vは公開フィールドのみを持つスナップショット構造体である必要があります。
func EncodeGob(w io.Writer, v interface{}) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return nil
}

// DecodeGob はrからgob形式の値をvに読み込みます（vはポインタ）。
func DecodeGob(r io.Reader, v interface{}) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	return nil
}

// MarshalGob はvをgobバイト列に変換します。
func MarshalGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeGob(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalGob はgobバイト列をvに復元します。
func UnmarshalGob(data []byte, v interface{}) error {
	return DecodeGob(bytes.NewReader(data), v)
}
