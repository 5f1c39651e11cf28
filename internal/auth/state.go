package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// State はOAuthのstateパラメータに載せる情報。
// 署名していないため、改ざん検知には使えない。
type State struct {
	RedirectURI string `json:"redirectUri"`
	Provider    string `json:"provider"`
}

// EncodeState はstateをbase64(JSON)に符号化する。
func EncodeState(s State) string {
	b, _ := json.Marshal(s)
	return base64.StdEncoding.EncodeToString(b)
}

// stateEncodings はDecodeStateが受け付けるbase64の種類。
var stateEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeState はbase64(JSON)のstateを復号する。標準・URLセーフのどちらの文字種も受け付ける。
func DecodeState(raw string) (*State, error) {
	if raw == "" {
		return nil, errors.New("state is empty")
	}
	// クエリ文字列で'+'が空白に化けた場合を戻す
	raw = strings.ReplaceAll(raw, " ", "+")

	var payload []byte
	var err error
	for _, enc := range stateEncodings {
		payload, err = enc.DecodeString(raw)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}

	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	return &s, nil
}
