package ahrs

import "math"

// Madgwick is the gradient-descent attitude filter. Beta trades
// convergence speed against noise sensitivity; 0.1 suits consumer IMUs,
// values down to 0.02 have been suggested for quieter sensors.
type Madgwick struct {
	beta float64
	q    Quaternion
}

// NewMadgwick returns a filter initialized to the identity orientation.
func NewMadgwick(beta float64) *Madgwick {
	return &Madgwick{beta: beta, q: Identity}
}

// Quaternion returns the current orientation estimate.
func (f *Madgwick) Quaternion() Quaternion { return f.q }

// Reset returns the filter to the identity orientation.
func (f *Madgwick) Reset() { f.q = Identity }

// Update feeds one sample into the filter. Gyroscope rates are rad/s;
// accelerometer and magnetometer may be in any units, they are normalized
// internally. dt is the sample interval in seconds.
func (f *Madgwick) Update(gx, gy, gz, ax, ay, az, mx, my, mz, dt float64) {
	// Fall back to the 6-DOF update if the magnetometer measurement is
	// invalid (avoids NaN in magnetometer normalisation).
	if mx == 0 && my == 0 && mz == 0 {
		f.UpdateIMU(gx, gy, gz, ax, ay, az, dt)
		return
	}

	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z

	// Rate of change of quaternion from gyroscope
	qDot1 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot2 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot3 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot4 := 0.5 * (q0*gz + q1*gy - q2*gx)

	// Compute feedback only if accelerometer measurement valid (avoids NaN
	// in accelerometer normalisation)
	if !(ax == 0 && ay == 0 && az == 0) {
		recipNorm := 1.0 / math.Sqrt(ax*ax+ay*ay+az*az)
		ax *= recipNorm
		ay *= recipNorm
		az *= recipNorm

		recipNorm = 1.0 / math.Sqrt(mx*mx+my*my+mz*mz)
		mx *= recipNorm
		my *= recipNorm
		mz *= recipNorm

		// Auxiliary variables to avoid repeated arithmetic
		_2q0mx := 2.0 * q0 * mx
		_2q0my := 2.0 * q0 * my
		_2q0mz := 2.0 * q0 * mz
		_2q1mx := 2.0 * q1 * mx
		_2q0 := 2.0 * q0
		_2q1 := 2.0 * q1
		_2q2 := 2.0 * q2
		_2q3 := 2.0 * q3
		_2q0q2 := 2.0 * q0 * q2
		_2q2q3 := 2.0 * q2 * q3
		q0q0 := q0 * q0
		q0q1 := q0 * q1
		q0q2 := q0 * q2
		q0q3 := q0 * q3
		q1q1 := q1 * q1
		q1q2 := q1 * q2
		q1q3 := q1 * q3
		q2q2 := q2 * q2
		q2q3 := q2 * q3
		q3q3 := q3 * q3

		// Reference direction of Earth's magnetic field
		hx := mx*q0q0 - _2q0my*q3 + _2q0mz*q2 + mx*q1q1 + _2q1*my*q2 + _2q1*mz*q3 - mx*q2q2 - mx*q3q3
		hy := _2q0mx*q3 + my*q0q0 - _2q0mz*q1 + _2q1mx*q2 - my*q1q1 + my*q2q2 + _2q2*mz*q3 - my*q3q3
		_2bx := math.Sqrt(hx*hx + hy*hy)
		_2bz := -_2q0mx*q2 + _2q0my*q1 + mz*q0q0 + _2q1mx*q3 - mz*q1q1 + _2q2*my*q3 - mz*q2q2 + mz*q3q3
		_4bx := 2.0 * _2bx
		_4bz := 2.0 * _2bz

		// Gradient descent algorithm corrective step
		s0 := -_2q2*(2.0*q1q3-_2q0q2-ax) + _2q1*(2.0*q0q1+_2q2q3-ay) - _2bz*q2*(_2bx*(0.5-q2q2-q3q3)+_2bz*(q1q3-q0q2)-mx) + (-_2bx*q3+_2bz*q1)*(_2bx*(q1q2-q0q3)+_2bz*(q0q1+q2q3)-my) + _2bx*q2*(_2bx*(q0q2+q1q3)+_2bz*(0.5-q1q1-q2q2)-mz)
		s1 := _2q3*(2.0*q1q3-_2q0q2-ax) + _2q0*(2.0*q0q1+_2q2q3-ay) - 4.0*q1*(1-2.0*q1q1-2.0*q2q2-az) + _2bz*q3*(_2bx*(0.5-q2q2-q3q3)+_2bz*(q1q3-q0q2)-mx) + (_2bx*q2+_2bz*q0)*(_2bx*(q1q2-q0q3)+_2bz*(q0q1+q2q3)-my) + (_2bx*q3-_4bz*q1)*(_2bx*(q0q2+q1q3)+_2bz*(0.5-q1q1-q2q2)-mz)
		s2 := -_2q0*(2.0*q1q3-_2q0q2-ax) + _2q3*(2.0*q0q1+_2q2q3-ay) - 4.0*q2*(1-2.0*q1q1-2.0*q2q2-az) + (-_4bx*q2-_2bz*q0)*(_2bx*(0.5-q2q2-q3q3)+_2bz*(q1q3-q0q2)-mx) + (_2bx*q1+_2bz*q3)*(_2bx*(q1q2-q0q3)+_2bz*(q0q1+q2q3)-my) + (_2bx*q0-_4bz*q2)*(_2bx*(q0q2+q1q3)+_2bz*(0.5-q1q1-q2q2)-mz)
		s3 := _2q1*(2.0*q1q3-_2q0q2-ax) + _2q2*(2.0*q0q1+_2q2q3-ay) + (-_4bx*q3+_2bz*q1)*(_2bx*(0.5-q2q2-q3q3)+_2bz*(q1q3-q0q2)-mx) + (-_2bx*q0+_2bz*q2)*(_2bx*(q1q2-q0q3)+_2bz*(q0q1+q2q3)-my) + _2bx*q1*(_2bx*(q0q2+q1q3)+_2bz*(0.5-q1q1-q2q2)-mz)

		// A zero step means the estimate already matches the measurements;
		// normalising it would divide by zero.
		if sNorm := math.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3); sNorm > 0 {
			s0 /= sNorm
			s1 /= sNorm
			s2 /= sNorm
			s3 /= sNorm

			// Apply feedback step
			qDot1 -= f.beta * s0
			qDot2 -= f.beta * s1
			qDot3 -= f.beta * s2
			qDot4 -= f.beta * s3
		}
	}

	// Integrate rate of change of quaternion to yield quaternion
	q0 += qDot1 * dt
	q1 += qDot2 * dt
	q2 += qDot3 * dt
	q3 += qDot4 * dt

	f.q = Quaternion{q0, q1, q2, q3}.Normalize()
}

// UpdateIMU is the 6-DOF update used when no magnetometer data is
// available. Yaw is unobservable in this mode and will drift with the
// gyroscope bias.
func (f *Madgwick) UpdateIMU(gx, gy, gz, ax, ay, az, dt float64) {
	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z

	// Rate of change of quaternion from gyroscope
	qDot1 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot2 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot3 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot4 := 0.5 * (q0*gz + q1*gy - q2*gx)

	if !(ax == 0 && ay == 0 && az == 0) {
		recipNorm := 1.0 / math.Sqrt(ax*ax+ay*ay+az*az)
		ax *= recipNorm
		ay *= recipNorm
		az *= recipNorm

		_2q0 := 2.0 * q0
		_2q1 := 2.0 * q1
		_2q2 := 2.0 * q2
		_2q3 := 2.0 * q3
		_4q0 := 4.0 * q0
		_4q1 := 4.0 * q1
		_4q2 := 4.0 * q2
		_8q1 := 8.0 * q1
		_8q2 := 8.0 * q2
		q0q0 := q0 * q0
		q1q1 := q1 * q1
		q2q2 := q2 * q2
		q3q3 := q3 * q3

		// Gradient descent algorithm corrective step
		s0 := _4q0*q2q2 + _2q2*ax + _4q0*q1q1 - _2q1*ay
		s1 := _4q1*q3q3 - _2q3*ax + 4.0*q0q0*q1 - _2q0*ay - _4q1 + _8q1*q1q1 + _8q1*q2q2 + _4q1*az
		s2 := 4.0*q0q0*q2 + _2q0*ax + _4q2*q3q3 - _2q3*ay - _4q2 + _8q2*q1q1 + _8q2*q2q2 + _4q2*az
		s3 := 4.0*q1q1*q3 - _2q1*ax + 4.0*q2q2*q3 - _2q2*ay

		if sNorm := math.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3); sNorm > 0 {
			s0 /= sNorm
			s1 /= sNorm
			s2 /= sNorm
			s3 /= sNorm

			// Apply feedback step
			qDot1 -= f.beta * s0
			qDot2 -= f.beta * s1
			qDot3 -= f.beta * s2
			qDot4 -= f.beta * s3
		}
	}

	// Integrate rate of change of quaternion to yield quaternion
	q0 += qDot1 * dt
	q1 += qDot2 * dt
	q2 += qDot3 * dt
	q3 += qDot4 * dt

	f.q = Quaternion{q0, q1, q2, q3}.Normalize()
}
