package services

import (
	"math"
	"math/rand/v2"
)

// PriceSelector выбирает цену внутри допустимой полосы и базу скидки
type PriceSelector interface {
	// SelectPrice возвращает целое из [lo, hi] включительно, lo <= hi
	SelectPrice(lo, hi int64) int64
	// SelectDiscountBase возвращает зачеркнутую цену из [1.3*price, 1.6*price]
	SelectDiscountBase(price int64) int64
}

const (
	discountBaseMin = 1.3
	discountBaseMax = 1.6
)

// RandomSelector выбирает значения равномерно случайно
type RandomSelector struct{}

func (RandomSelector) SelectPrice(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Int64N(hi-lo+1)
}

func (RandomSelector) SelectDiscountBase(price int64) int64 {
	p := float64(price)
	return int64(math.Round(discountBaseMin*p + rand.Float64()*(discountBaseMax-discountBaseMin)*p))
}
