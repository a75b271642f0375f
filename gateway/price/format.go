package price

import (
	"strconv"
	"strings"
)

// FormatUSD はトークン量とレートからUSD表記を作る
// 1未満は小数4桁、1000未満は小数2桁、それ以上は3桁区切りで小数2桁
func FormatUSD(amount, rate float64) string {
	usd := amount * rate
	switch {
	case usd < 1:
		return "$" + strconv.FormatFloat(usd, 'f', 4, 64)
	case usd < 1000:
		return "$" + strconv.FormatFloat(usd, 'f', 2, 64)
	default:
		return "$" + withThousands(usd)
	}
}

// FormatEtherWithUSD は "1.2345 ETH (~$3,086.25)" 形式の表記を作る
func FormatEtherWithUSD(eth, rate float64, symbol string) string {
	if symbol == "" {
		symbol = "ETH"
	}
	return strconv.FormatFloat(eth, 'f', 4, 64) + " " + symbol + " (~$" + withThousands(eth*rate) + ")"
}

func withThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}
