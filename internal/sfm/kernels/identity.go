package kernels

import "gonum.org/v1/gonum/mat"

// Identity3x4 returns the 3x4 identity camera matrix, the fixed seed
// camera P1 every reconstruction anchors its projective frame to.
func Identity3x4() CameraMatrix {
	return mat.NewDense(3, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
}
