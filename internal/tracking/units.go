package tracking

import (
	"fmt"
	"math"
	"strings"
)

// LitresPerGallon 美制加仑与升的换算系数
const LitresPerGallon = 3.785411784

// Unit 表示客户端使用的体积单位，存储统一使用升
type Unit string

const (
	UnitLitres  Unit = "litres"
	UnitGallons Unit = "gallons"
)

// ParseUnit 解析单位名称，兼容 liters/gallon 等写法
func ParseUnit(raw string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "litres", "litre", "liters", "liter", "l":
		return UnitLitres, nil
	case "gallons", "gallon", "gal":
		return UnitGallons, nil
	default:
		return "", fmt.Errorf("unsupported unit %q", raw)
	}
}

// LitresToGallons 升转加仑
func LitresToGallons(litres float64) float64 {
	return litres / LitresPerGallon
}

// GallonsToLitres 加仑转升
func GallonsToLitres(gallons float64) float64 {
	return gallons * LitresPerGallon
}

// ToLitres 将指定单位的体积换算为升
func ToLitres(volume float64, unit Unit) float64 {
	if unit == UnitGallons {
		return GallonsToLitres(volume)
	}
	return volume
}

// FromLitres 将升换算为指定单位
func FromLitres(litres float64, unit Unit) float64 {
	if unit == UnitGallons {
		return LitresToGallons(litres)
	}
	return litres
}

// Round2 四舍五入保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
