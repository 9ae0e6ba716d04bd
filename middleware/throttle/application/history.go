package application

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"merchant-update-gate/middleware/throttle/domain"
)

const historyKeyPrefix = "uh_"

// TimestampLayout é o formato UTC de cada entrada (mesmo formato de
// http.TimeFormat / Date.prototype.toUTCString).
const TimestampLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// layouts aceitos na leitura, além do formato gravado.
var parseLayouts = []string{
	TimestampLayout,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339Nano,
}

// HistoryKey monta a chave de storage do histórico de um merchant.
func HistoryKey(id domain.MerchantID) string {
	return historyKeyPrefix + string(id)
}

// EncodeHistory serializa as entradas como base64(JSON([]string)).
func EncodeHistory(entries []time.Time) (string, error) {
	out := make([]string, 0, len(entries))
	for _, t := range entries {
		out = append(out, FormatTimestamp(t))
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding history: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeHistory faz o caminho inverso de EncodeHistory, devolvendo as strings
// cruas. Quem chama decide o que fazer com entradas que não são datas.
func DecodeHistory(raw string) ([]string, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding history base64: %w", err)
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding history json: %w", err)
	}
	return entries, nil
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp aceita o formato gravado e variações comuns (RFC 1123 com
// zona, RFC 3339).
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
