package logic

import "time"

// microsPerCentimeter is the HC-SR04 datasheet divisor: the echo is high for
// 58µs per centimeter of distance (out and back at ~344 m/s).
const microsPerCentimeter = 58

// TicksToCentimeters converts an echo width counted in timer ticks of the
// given period into centimeters, truncating. Results that would collide with
// the sentinel saturate to NoEcho.
func TicksToCentimeters(ticks int, tick time.Duration) Distance {
	if ticks <= 0 || tick <= 0 {
		return 0
	}
	cm := int64(ticks) * tick.Nanoseconds() / (microsPerCentimeter * int64(time.Microsecond))
	if cm >= int64(NoEcho) {
		return NoEcho
	}
	return Distance(cm)
}

// CentimetersToTicks is the inverse of TicksToCentimeters, truncating.
func CentimetersToTicks(d Distance, tick time.Duration) int {
	if tick <= 0 {
		return 0
	}
	return int(int64(d) * microsPerCentimeter * int64(time.Microsecond) / tick.Nanoseconds())
}
