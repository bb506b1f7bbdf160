package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// stage runs an OpenCV operation into a fresh matrix and reports an error
// when the operation left it empty.
func stage(name string, op func(dst *gocv.Mat)) (gocv.Mat, error) {
	dst := gocv.NewMat()
	op(&dst)
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("%s produced an empty result", name)
	}
	return dst, nil
}

// PreprocessImage enhances img for feature detection. Renders get contrast
// equalization blended with an edge map; photographs are denoised,
// equalized, sharpened and stretched to the full intensity range.
func PreprocessImage(img *GrayImage, verdict RenderVerdict, t Tuning) (*GrayImage, error) {
	if img == nil || img.mat.Empty() {
		return nil, ErrEmptyImage
	}

	if verdict.IsRendered() {
		return preprocessRendered(img.mat, t)
	}
	return preprocessPhotographed(img.mat, t)
}

func equalize(src gocv.Mat, clipLimit float64, grid int) (gocv.Mat, error) {
	clahe := gocv.NewCLAHEWithParams(clipLimit, image.Point{X: grid, Y: grid})
	defer clahe.Close()

	return stage("clahe", func(dst *gocv.Mat) {
		clahe.Apply(src, dst)
	})
}

func preprocessRendered(src gocv.Mat, t Tuning) (*GrayImage, error) {
	equalized, err := equalize(src, t.Rendered.ClipLimit, t.TileGrid)
	if err != nil {
		return nil, err
	}
	defer equalized.Close()

	laplacian, err := stage("laplacian", func(dst *gocv.Mat) {
		gocv.Laplacian(equalized, dst, gocv.MatTypeCV16S, t.LaplacianKernel, 1, 0, gocv.BorderDefault)
	})
	if err != nil {
		return nil, err
	}
	defer laplacian.Close()

	edges, err := stage("convert scale abs", func(dst *gocv.Mat) {
		gocv.ConvertScaleAbs(laplacian, dst, 1, 0)
	})
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	blended, err := stage("edge blend", func(dst *gocv.Mat) {
		gocv.AddWeighted(equalized, t.EqualizedWeight, edges, t.EdgeWeight, 0, dst)
	})
	if err != nil {
		return nil, err
	}
	return wrapMat(blended, "edge blend")
}

func preprocessPhotographed(src gocv.Mat, t Tuning) (*GrayImage, error) {
	denoised, err := stage("denoise", func(dst *gocv.Mat) {
		gocv.FastNlMeansDenoisingWithParams(src, dst, t.DenoiseStrength, t.DenoiseTemplate, t.DenoiseSearch)
	})
	if err != nil {
		return nil, err
	}
	defer denoised.Close()

	equalized, err := equalize(denoised, t.Photographed.ClipLimit, t.TileGrid)
	if err != nil {
		return nil, err
	}
	defer equalized.Close()

	blurred, err := stage("unsharp blur", func(dst *gocv.Mat) {
		gocv.GaussianBlur(equalized, dst, image.Point{}, t.UnsharpSigma, t.UnsharpSigma, gocv.BorderDefault)
	})
	if err != nil {
		return nil, err
	}
	defer blurred.Close()

	sharpened, err := stage("unsharp mask", func(dst *gocv.Mat) {
		gocv.AddWeighted(equalized, t.UnsharpAmount, blurred, t.UnsharpBlurWeight, 0, dst)
	})
	if err != nil {
		return nil, err
	}
	defer sharpened.Close()

	normalized, err := stage("normalize", func(dst *gocv.Mat) {
		gocv.Normalize(sharpened, dst, 0, 255, gocv.NormMinMax)
	})
	if err != nil {
		return nil, err
	}
	return wrapMat(normalized, "normalize")
}
