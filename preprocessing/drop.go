package preprocessing

import (
	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/model"
)

// DropName はDropのレジストリ名です。
const DropName = "drop"

func init() {
	Register(DropName, func(params Params) (Preprocessor, error) {
		var opts struct {
			Columns []string `json:"columns"`
		}
		if err := decodeParams(DropName, params, &opts); err != nil {
			return nil, err
		}
		return NewDrop(opts.Columns...), nil
	})
}

// Drop は指定した列を削除する状態を持たない変換です。
// 存在しない列の指定は Transform 時に ValueError になります。
type Drop struct {
	columns []string
}

// NewDrop は新しいDropを作成します。
func NewDrop(columns ...string) *Drop {
	return &Drop{columns: append([]string(nil), columns...)}
}

// Name は登録名を返します。
func (d *Drop) Name() string { return DropName }

// Columns は削除対象の列名を返します。
func (d *Drop) Columns() []string { return append([]string(nil), d.columns...) }

// Fit は何もしません。
func (d *Drop) Fit(*frame.Table) error { return nil }

// Transform は指定された列を除いたテーブルを返します。
func (d *Drop) Transform(t *frame.Table) (*frame.Table, error) {
	return t.Drop(d.columns...)
}

type dropState struct {
	Columns []string
}

// MarshalBinary は学習済み状態をgobで符号化します。
func (d *Drop) MarshalBinary() ([]byte, error) {
	return model.MarshalGob(dropState{Columns: d.columns})
}

// UnmarshalBinary はMarshalBinaryの出力から状態を復元します。
func (d *Drop) UnmarshalBinary(data []byte) error {
	var s dropState
	if err := model.UnmarshalGob(data, &s); err != nil {
		return err
	}
	d.columns = s.Columns
	return nil
}
