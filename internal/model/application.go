package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// 予約フィールド名。クライアントが送信したフィールドでは上書きできない。
const (
	FieldID        = "id"
	FieldUserID    = "userId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// IsReservedField はサーバーが管理するフィールド名かどうかを返す。
func IsReservedField(key string) bool {
	switch key {
	case FieldID, FieldUserID, FieldCreatedAt, FieldUpdatedAt:
		return true
	default:
		return false
	}
}

// Fields はクライアントが自由に設定できる応募情報のフィールド群。
// company, position, status, notes等の形は検証しない。
type Fields map[string]any

// Application は求人への応募記録を表す。
type Application struct {
	ID        string
	UserID    string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Document は予約フィールドとクライアントフィールドを1つのフラットなマップにまとめる。
// ストアへの保存とAPIレスポンスの両方で同じ形を使う。
func (a *Application) Document() map[string]any {
	doc := make(map[string]any, len(a.Fields)+4)
	for k, v := range a.Fields {
		if IsReservedField(k) {
			continue
		}
		doc[k] = v
	}
	doc[FieldID] = a.ID
	doc[FieldUserID] = a.UserID
	doc[FieldCreatedAt] = a.CreatedAt.UTC().Format(time.RFC3339Nano)
	if a.UpdatedAt != nil {
		doc[FieldUpdatedAt] = a.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// MarshalJSON はフラットなドキュメント形式でJSONを出力する。
func (a *Application) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Document())
}

// ApplicationFromDocument はストアのドキュメントからApplicationを復元する。
func ApplicationFromDocument(doc map[string]any) (*Application, error) {
	app := &Application{Fields: make(Fields, len(doc))}

	for k, v := range doc {
		switch k {
		case FieldID:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %q is not a string", k)
			}
			app.ID = s
		case FieldUserID:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %q is not a string", k)
			}
			app.UserID = s
		case FieldCreatedAt:
			t, err := parseTimestamp(k, v)
			if err != nil {
				return nil, err
			}
			app.CreatedAt = t
		case FieldUpdatedAt:
			if v == nil {
				continue
			}
			t, err := parseTimestamp(k, v)
			if err != nil {
				return nil, err
			}
			app.UpdatedAt = &t
		default:
			app.Fields[k] = v
		}
	}

	if app.ID == "" {
		return nil, fmt.Errorf("document has no %q", FieldID)
	}
	return app, nil
}

func parseTimestamp(key string, v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("field %q is not a string", key)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", key, err)
	}
	return t, nil
}
