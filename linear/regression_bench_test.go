package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	// X: rows x cols の行列（ランダムな値を生成）
	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			// -1.0 から 1.0 の範囲のランダムな値
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	// 真の重みベクトルを生成
	trueWeights := make([]float64, cols)
	for j := 0; j < cols; j++ {
		trueWeights[j] = float64(j+1) * 0.5
	}

	// y: rows x 1 の列ベクトル（y = X * weights + 小さなノイズ）
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0 // 切片
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * trueWeights[j]
		}
		// 小さなノイズを追加
		sum += (rng.Float64() - 0.5) * 0.1
		y.Set(i, 0, sum)
	}

	return X, y
}

// BenchmarkLinearRegressionFit はFitメソッドのベンチマークを実行する
func BenchmarkLinearRegressionFit(b *testing.B) {
	// 様々なサイズでベンチマークを実行
	sizes := []struct {
		name string
		rows int
		cols int
	}{
		{"Kaggle_1460x30", 1460, 30}, // PCA 30成分
		{"Kaggle_1460x80", 1460, 80},
		{"OneHot_1460x300", 1460, 300}, // PCAなしのone-hot展開
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				lr := NewLinearRegression()
				err := lr.Fit(X, y)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
