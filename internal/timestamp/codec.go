// Package timestamp 把回答中的 {timestamp:T} 标记改写为可点击的视频链接占位符。
// 这是纯文本变换，不做任何 I/O。
package timestamp

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bents-assistant-go/pkg/log"
)

// ErrInvalidTimestamp 表示时间戳既不是 MM:SS 也不是 HH:MM:SS，或者某个分量非法。
var ErrInvalidTimestamp = errors.New("invalid timestamp")

var markerPattern = regexp.MustCompile(`\{timestamp:([^}]+)\}`)

// ParseTimestamp 将 MM:SS 或 HH:MM:SS 解析为总秒数。
// 分钟和秒必须小于 60，小时不设上限。
func ParseTimestamp(ts string) (int, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
		}
		values[i] = n
	}

	// 最后两个分量是分钟和秒
	minutes, seconds := values[len(values)-2], values[len(values)-1]
	if minutes >= 60 || seconds >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}

	total := minutes*60 + seconds
	if len(values) == 3 {
		// 小时过大时总秒数会溢出 int
		if values[0] > (math.MaxInt-3599)/3600 {
			return 0, fmt.Errorf("%w: hours out of range in %q", ErrInvalidTimestamp, ts)
		}
		total += values[0] * 3600
	}
	return total, nil
}

// AppendSeconds 在 URL 上追加 t 参数：没有查询串时用 ?t=，否则用 &t=。
func AppendSeconds(baseURL string, seconds int) string {
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + "t=" + strconv.Itoa(seconds)
}

// CombineURLAndTimestamp 解析时间戳并生成带 t 参数的视频链接。
func CombineURLAndTimestamp(baseURL, ts string) (string, error) {
	seconds, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	return AppendSeconds(baseURL, seconds), nil
}

// Placeholder 返回第 n 个视频占位符。
func Placeholder(n int) string {
	return fmt.Sprintf("[video%d]", n)
}

// Rewrite 从左到右扫描回答中的时间戳标记，每个合法标记替换为一个独立的 [videoN] 占位符，
// 并记录占位符到派生链接的映射。每个非空候选 URL 派生一个链接。
// 非法标记原样保留，不占用占位符编号。不含标记的文本原样返回，映射为空。
func Rewrite(answerText string, candidateURLs []string) (string, map[string][]string) {
	links := make(map[string][]string)
	next := 0

	processed := markerPattern.ReplaceAllStringFunc(answerText, func(marker string) string {
		ts := markerPattern.FindStringSubmatch(marker)[1]
		seconds, err := ParseTimestamp(ts)
		if err != nil {
			log.Warnf("[TimestampCodec] 跳过非法时间戳标记 %s: %v", marker, err)
			return marker
		}

		derived := make([]string, 0, len(candidateURLs))
		for _, u := range candidateURLs {
			if strings.TrimSpace(u) == "" {
				continue
			}
			derived = append(derived, AppendSeconds(u, seconds))
		}

		placeholder := Placeholder(next)
		next++
		links[placeholder] = derived
		return placeholder
	})

	return processed, links
}
