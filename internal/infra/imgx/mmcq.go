package imgx

import (
	"sort"

	"github.com/Fantaskink/dunebot/internal/domain"
)

// MMCQ（modified median cut quantization）参数，与 color-thief 一致。
const (
	sigBits         = 5
	rShift          = 8 - sigBits
	histSide        = 1 << sigBits
	maxIterations   = 1000
	fractByPopulate = 0.75
)

func histIndex(r, g, b int) int {
	return r<<(2*sigBits) | g<<sigBits | b
}

// vbox 是 5bit 量化色彩空间中的一个长方体（闭区间）。
type vbox struct {
	r1, r2, g1, g2, b1, b2 int
	hist                   []int

	count int
}

func (v *vbox) volume() int {
	return max0(v.r2-v.r1+1) * max0(v.g2-v.g1+1) * max0(v.b2-v.b1+1)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func (v *vbox) recount() {
	n := 0
	for r := v.r1; r <= v.r2; r++ {
		for g := v.g1; g <= v.g2; g++ {
			for b := v.b1; b <= v.b2; b++ {
				n += v.hist[histIndex(r, g, b)]
			}
		}
	}
	v.count = n
}

func (v *vbox) copy() *vbox {
	c := *v
	return &c
}

// avg 返回长方体内像素的加权平均色；空盒返回几何中心。
func (v *vbox) avg() domain.RGB {
	const mult = 1 << rShift
	var total, rs, gs, bs float64
	for r := v.r1; r <= v.r2; r++ {
		for g := v.g1; g <= v.g2; g++ {
			for b := v.b1; b <= v.b2; b++ {
				h := float64(v.hist[histIndex(r, g, b)])
				total += h
				rs += h * (float64(r) + 0.5) * mult
				gs += h * (float64(g) + 0.5) * mult
				bs += h * (float64(b) + 0.5) * mult
			}
		}
	}
	if total == 0 {
		return domain.RGB{
			R: clamp8(mult * float64(v.r1+v.r2+1) / 2),
			G: clamp8(mult * float64(v.g1+v.g2+1) / 2),
			B: clamp8(mult * float64(v.b1+v.b2+1) / 2),
		}
	}
	return domain.RGB{R: clamp8(rs / total), G: clamp8(gs / total), B: clamp8(bs / total)}
}

func clamp8(f float64) uint8 {
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	default:
		return uint8(f)
	}
}

// Palette 对 RGBA 像素缓冲做 MMCQ 量化，返回最多 maxColors 个颜色，按像素数降序。
//
// 规则：
// - 每 quality 个像素采样 1 个
// - 跳过几乎透明（alpha < 125）与接近纯白（三通道都 > 250）的像素
// - 没有可用像素时返回 nil
func Palette(pix []byte, maxColors, quality int) []domain.RGB {
	if maxColors < 2 {
		maxColors = 2
	}
	if maxColors > 256 {
		maxColors = 256
	}
	if quality < 1 {
		quality = 1
	}

	hist := make([]int, 1<<(3*sigBits))
	box := &vbox{r1: histSide, g1: histSide, b1: histSide, r2: -1, g2: -1, b2: -1, hist: hist}

	n := 0
	for i := 0; i+3 < len(pix); i += 4 * quality {
		r, g, b, a := pix[i], pix[i+1], pix[i+2], pix[i+3]
		if a < 125 || (r > 250 && g > 250 && b > 250) {
			continue
		}
		rv, gv, bv := int(r)>>rShift, int(g)>>rShift, int(b)>>rShift
		hist[histIndex(rv, gv, bv)]++
		box.r1, box.r2 = minInt(box.r1, rv), maxInt(box.r2, rv)
		box.g1, box.g2 = minInt(box.g1, gv), maxInt(box.g2, gv)
		box.b1, box.b2 = minInt(box.b1, bv), maxInt(box.b2, bv)
		n++
	}
	if n == 0 {
		return nil
	}
	box.count = n

	// 第一轮按像素数切分，第二轮按“像素数 × 体积”切分，避免大而稀疏的盒子吞掉细节。
	byCount := func(v *vbox) int { return v.count }
	byCountVolume := func(v *vbox) int { return v.count * v.volume() }

	boxes := split([]*vbox{box}, int(fractByPopulate*float64(maxColors)), byCount)
	boxes = split(boxes, maxColors, byCountVolume)

	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].count > boxes[j].count })

	out := make([]domain.RGB, 0, len(boxes))
	for _, v := range boxes {
		if v.count == 0 {
			continue
		}
		out = append(out, v.avg())
	}
	return out
}

// split 反复取出 key 最大的盒子做中位切分，直到盒子数达到 target。
func split(boxes []*vbox, target int, key func(*vbox) int) []*vbox {
	for iter := 0; iter < maxIterations && len(boxes) < target; iter++ {
		sort.SliceStable(boxes, func(i, j int) bool { return key(boxes[i]) < key(boxes[j]) })
		last := len(boxes) - 1
		v := boxes[last]
		if v.count == 0 {
			continue
		}
		a, b := medianCut(v)
		if a == nil {
			return boxes
		}
		boxes[last] = a
		if b != nil {
			boxes = append(boxes, b)
		}
	}
	return boxes
}

// medianCut 沿最长的轴，在像素累计数过半处把盒子一分为二。
func medianCut(v *vbox) (*vbox, *vbox) {
	if v.count == 0 {
		return nil, nil
	}
	if v.count == 1 {
		return v.copy(), nil
	}

	rw, gw, bw := v.r2-v.r1+1, v.g2-v.g1+1, v.b2-v.b1+1
	maxw := maxInt(rw, maxInt(gw, bw))

	var partial, lookahead [histSide]int
	total := 0
	var lo, hi int
	var sumAt func(i int) int
	switch maxw {
	case rw:
		lo, hi = v.r1, v.r2
		sumAt = func(i int) int { return planeSum(v, i, -1, -1) }
	case gw:
		lo, hi = v.g1, v.g2
		sumAt = func(i int) int { return planeSum(v, -1, i, -1) }
	default:
		lo, hi = v.b1, v.b2
		sumAt = func(i int) int { return planeSum(v, -1, -1, i) }
	}
	for i := lo; i <= hi; i++ {
		total += sumAt(i)
		partial[i] = total
	}
	for i := lo; i <= hi; i++ {
		lookahead[i] = total - partial[i]
	}

	for i := lo; i <= hi; i++ {
		if partial[i] <= total/2 {
			continue
		}
		left, right := i-lo, hi-i
		var d2 int
		if left <= right {
			d2 = minInt(hi-1, i+right/2)
		} else {
			d2 = maxInt(lo, int(float64(i)-1-float64(left)/2))
		}
		// 避免切出 0 像素的盒子
		for d2 < 0 || (d2 < hi && partial[d2] == 0) {
			d2++
		}
		count2 := lookahead[d2]
		for count2 == 0 && d2 > 0 && partial[d2-1] != 0 {
			d2--
			count2 = lookahead[d2]
		}

		a, b := v.copy(), v.copy()
		switch maxw {
		case rw:
			a.r2, b.r1 = d2, d2+1
		case gw:
			a.g2, b.g1 = d2, d2+1
		default:
			a.b2, b.b1 = d2, d2+1
		}
		a.recount()
		b.recount()
		return a, b
	}
	return nil, nil
}

// planeSum 统计盒子在某个轴上某一层的像素数；-1 表示该轴取盒子全范围。
func planeSum(v *vbox, r, g, b int) int {
	r1, r2, g1, g2, b1, b2 := v.r1, v.r2, v.g1, v.g2, v.b1, v.b2
	if r >= 0 {
		r1, r2 = r, r
	}
	if g >= 0 {
		g1, g2 = g, g
	}
	if b >= 0 {
		b1, b2 = b, b
	}
	n := 0
	for i := r1; i <= r2; i++ {
		for j := g1; j <= g2; j++ {
			for k := b1; k <= b2; k++ {
				n += v.hist[histIndex(i, j, k)]
			}
		}
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
