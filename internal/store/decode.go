package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/intelnews/internal/model"
)

// ErrInvalidResponse はエンドポイントがJSONでない応答を返したことを示す。
// 公開設定が「全員」でないスプレッドシートはHTMLのログインページを返すため、
// 運用者向けに通常の通信エラーと区別する。
var ErrInvalidResponse = errors.New("store endpoint returned a non-JSON response; check that the endpoint is shared with anyone")

// flexString は文字列・数値・真偽値のいずれで届いても文字列として受け取る。
// スプレッドシートのセルは型が揺れるため。
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexString(strconv.FormatBool(v))
		return nil
	}
	// オブジェクト・配列はセル値として扱わない
	*f = ""
	return nil
}

// flexBool は真偽値・"TRUE"/"false"等の文字列・数値を真偽値として受け取る。
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexBool(n != 0)
		return nil
	}
	*f = false
	return nil
}

// rawArticle はエンドポイントから届く1行。
type rawArticle struct {
	ID          flexString `json:"id"`
	Timestamp   flexString `json:"timestamp"`
	Title       flexString `json:"title"`
	Tagline     flexString `json:"tagline"`
	Description flexString `json:"description"`
	Image       flexString `json:"image"`
	Category    flexString `json:"category"`
	IsFeatured  flexBool   `json:"isFeatured"`
	IsHeading   flexBool   `json:"isHeading"`
}

func (r rawArticle) toModel() model.Article {
	return model.Article{
		ID:          string(r.ID),
		Timestamp:   string(r.Timestamp),
		Title:       string(r.Title),
		Tagline:     string(r.Tagline),
		Description: string(r.Description),
		Image:       string(r.Image),
		Category:    string(r.Category),
		IsFeatured:  bool(r.IsFeatured),
		IsHeading:   bool(r.IsHeading),
	}
}

// decodeCollection はGET応答のボディを記事の配列にデコードする。
// {"data": [...]} と素の配列の両方を受け付ける。dataが配列でない場合は空として扱い、
// okをfalseで返す（呼び出し側で警告ログを出す）。
// null要素やオブジェクトでない要素は読み飛ばす。
func decodeCollection(body []byte) (articles []model.Article, ok bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, false, ErrInvalidResponse
	}

	var elems []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	case '{':
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if err := json.Unmarshal(envelope.Data, &elems); err != nil || envelope.Data == nil {
			return []model.Article{}, false, nil
		}
	default:
		return []model.Article{}, false, nil
	}

	articles = make([]model.Article, 0, len(elems))
	for _, elem := range elems {
		e := bytes.TrimSpace(elem)
		if len(e) == 0 || e[0] != '{' {
			continue
		}
		var raw rawArticle
		if err := json.Unmarshal(e, &raw); err != nil {
			continue
		}
		articles = append(articles, raw.toModel())
	}
	return articles, true, nil
}

// submitResponse はPOST応答のボディ。
type submitResponse struct {
	Result string     `json:"result"`
	ID     flexString `json:"id"`
	Error  string     `json:"error"`
}
