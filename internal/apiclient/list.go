package apiclient

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

var emptyList = json.RawMessage("[]")

// NormalizeList は配列そのもの、または {"data": [...]} の形のレスポンスから配列を取り出す。
// それ以外の形の場合は空配列を返す。
func NormalizeList(raw []byte) json.RawMessage {
	if !gjson.ValidBytes(raw) {
		return emptyList
	}

	res := gjson.ParseBytes(raw)
	if res.IsArray() {
		return json.RawMessage(res.Raw)
	}
	if res.IsObject() {
		if data := res.Get("data"); data.IsArray() {
			return json.RawMessage(data.Raw)
		}
	}
	return emptyList
}

// DecodeList はNormalizeListで取り出した配列をTのスライスにデコードする。
// 結果は常に非nilのスライスになる。
func DecodeList[T any](raw []byte) ([]T, error) {
	out := []T{}
	if err := json.Unmarshal(NormalizeList(raw), &out); err != nil {
		return []T{}, fmt.Errorf("failed to decode list: %w", err)
	}
	return out, nil
}

// Unwrap は {"data": {...}} の形のレスポンスから中身を取り出す。
// dataがオブジェクトでない場合は元のレスポンスをそのまま返す。
func Unwrap(raw []byte) json.RawMessage {
	if !gjson.ValidBytes(raw) {
		return json.RawMessage(raw)
	}
	if data := gjson.GetBytes(raw, "data"); data.IsObject() {
		return json.RawMessage(data.Raw)
	}
	return json.RawMessage(raw)
}
