// Package ether はWeiとETH表記の相互変換を扱う
package ether

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
)

var weiPerEther = new(big.Int).SetUint64(params.Ether)

// decimalPattern は "12" や "0.5" のような10進表記のみ許可する
var decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Parse は "1.5" のようなETH表記をWeiに変換する
// 小数点以下18桁を超える指定はエラー
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, errors.Errorf("negative amount %q", s)
	}
	if !decimalPattern.MatchString(s) {
		return nil, errors.Errorf("invalid amount %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, errors.Errorf("invalid amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, errors.Errorf("amount %q has more than 18 decimals", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// Format はWeiをETH表記に変換する (末尾の0は省略)
func Format(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(wei, weiPerEther).FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// ToFloat はWeiをETHの浮動小数点値に変換する (表示・集計用)
func ToFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(wei, weiPerEther).Float64()
	return f
}

// FromUint はETH単位の整数をWeiに変換する
func FromUint(n uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(n), weiPerEther)
}
