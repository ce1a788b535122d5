package tracking

import "math"

// Summary 汇总一组人均每周体积
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
}

// Summarize 计算算术平均值与样本标准差。
// 没有数据时均值为 0；少于两个值时标准差为 0。
func Summarize(values []float64) Summary {
	summary := Summary{Count: len(values)}
	if summary.Count == 0 {
		return summary
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	summary.Mean = sum / float64(summary.Count)

	if summary.Count < 2 {
		return summary
	}

	var squares float64
	for _, v := range values {
		diff := v - summary.Mean
		squares += diff * diff
	}
	summary.StdDev = math.Sqrt(squares / float64(summary.Count-1))
	return summary
}
