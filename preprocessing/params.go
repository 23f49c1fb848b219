package preprocessing

import (
	"bytes"
	"encoding/json"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// decodeParams はparamsをdst (オプション構造体へのポインタ) に厳密にデコードします。
// 未知のパラメータや型の不一致は ConfigError になります。
func decodeParams(name string, params Params, dst any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return errors.NewConfigError("preprocessor", name, err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewConfigError("preprocessor", name, err.Error())
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
