package ahrs

import "math"

// Mahony is the explicit complementary attitude filter. The proportional
// gain Kp sets how hard accelerometer/magnetometer error pulls the
// estimate; the integral gain Ki absorbs slow gyroscope bias.
type Mahony struct {
	kp, ki               float64
	integralX, integralY float64
	integralZ            float64
	q                    Quaternion
}

// NewMahony returns a filter initialized to the identity orientation.
func NewMahony(kp, ki float64) *Mahony {
	return &Mahony{kp: kp, ki: ki, q: Identity}
}

// Quaternion returns the current orientation estimate.
func (f *Mahony) Quaternion() Quaternion { return f.q }

// Reset returns the filter to the identity orientation and clears the
// accumulated integral feedback.
func (f *Mahony) Reset() {
	f.q = Identity
	f.integralX, f.integralY, f.integralZ = 0, 0, 0
}

// Update feeds one sample into the filter. Gyroscope rates are rad/s;
// accelerometer and magnetometer may be in any units. dt is the sample
// interval in seconds.
func (f *Mahony) Update(gx, gy, gz, ax, ay, az, mx, my, mz, dt float64) {
	if mx == 0 && my == 0 && mz == 0 {
		f.UpdateIMU(gx, gy, gz, ax, ay, az, dt)
		return
	}

	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z

	if !(ax == 0 && ay == 0 && az == 0) {
		recipNorm := 1.0 / math.Sqrt(ax*ax+ay*ay+az*az)
		ax *= recipNorm
		ay *= recipNorm
		az *= recipNorm

		recipNorm = 1.0 / math.Sqrt(mx*mx+my*my+mz*mz)
		mx *= recipNorm
		my *= recipNorm
		mz *= recipNorm

		// Reference direction of Earth's magnetic field
		hx := 2.0*mx*(0.5-q2*q2-q3*q3) + 2.0*my*(q1*q2-q0*q3) + 2.0*mz*(q1*q3+q0*q2)
		hy := 2.0*mx*(q1*q2+q0*q3) + 2.0*my*(0.5-q1*q1-q3*q3) + 2.0*mz*(q2*q3-q0*q1)
		bx := math.Sqrt(hx*hx + hy*hy)
		bz := 2.0*mx*(q1*q3-q0*q2) + 2.0*my*(q2*q3+q0*q1) + 2.0*mz*(0.5-q1*q1-q2*q2)

		// Estimated direction of gravity and magnetic field
		vx := 2.0 * (q1*q3 - q0*q2)
		vy := 2.0 * (q0*q1 + q2*q3)
		vz := q0*q0 - q1*q1 - q2*q2 + q3*q3
		wx := 2.0*bx*(0.5-q2*q2-q3*q3) + 2.0*bz*(q1*q3-q0*q2)
		wy := 2.0*bx*(q1*q2-q0*q3) + 2.0*bz*(q0*q1+q2*q3)
		wz := 2.0*bx*(q0*q2+q1*q3) + 2.0*bz*(0.5-q1*q1-q2*q2)

		// Error is the cross product between estimated and measured
		// direction of gravity and magnetic field
		ex := (ay*vz - az*vy) + (my*wz - mz*wy)
		ey := (az*vx - ax*vz) + (mz*wx - mx*wz)
		ez := (ax*vy - ay*vx) + (mx*wy - my*wx)

		if f.ki > 0 {
			f.integralX += f.ki * ex * dt
			f.integralY += f.ki * ey * dt
			f.integralZ += f.ki * ez * dt
			gx += f.integralX
			gy += f.integralY
			gz += f.integralZ
		}

		gx += f.kp * ex
		gy += f.kp * ey
		gz += f.kp * ez
	}

	f.q = integrateRate(f.q, gx, gy, gz, dt)
}

// UpdateIMU is the 6-DOF update used when no magnetometer data is
// available.
func (f *Mahony) UpdateIMU(gx, gy, gz, ax, ay, az, dt float64) {
	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z

	if !(ax == 0 && ay == 0 && az == 0) {
		recipNorm := 1.0 / math.Sqrt(ax*ax+ay*ay+az*az)
		ax *= recipNorm
		ay *= recipNorm
		az *= recipNorm

		// Estimated direction of gravity
		vx := 2.0 * (q1*q3 - q0*q2)
		vy := 2.0 * (q0*q1 + q2*q3)
		vz := q0*q0 - q1*q1 - q2*q2 + q3*q3

		ex := ay*vz - az*vy
		ey := az*vx - ax*vz
		ez := ax*vy - ay*vx

		if f.ki > 0 {
			f.integralX += f.ki * ex * dt
			f.integralY += f.ki * ey * dt
			f.integralZ += f.ki * ez * dt
			gx += f.integralX
			gy += f.integralY
			gz += f.integralZ
		}

		gx += f.kp * ex
		gy += f.kp * ey
		gz += f.kp * ez
	}

	f.q = integrateRate(f.q, gx, gy, gz, dt)
}

// integrateRate advances q by the body rates over dt and renormalizes.
func integrateRate(q Quaternion, gx, gy, gz, dt float64) Quaternion {
	gx *= 0.5 * dt
	gy *= 0.5 * dt
	gz *= 0.5 * dt

	qa, qb, qc, qd := q.W, q.X, q.Y, q.Z
	return Quaternion{
		W: qa + (-qb*gx - qc*gy - qd*gz),
		X: qb + (qa*gx + qc*gz - qd*gy),
		Y: qc + (qa*gy - qb*gz + qd*gx),
		Z: qd + (qa*gz + qb*gy - qc*gx),
	}.Normalize()
}
