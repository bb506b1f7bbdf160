package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DescriptorSize is the length in bytes of an ORB descriptor.
const DescriptorSize = 32

// Keypoint is a detected feature location.
type Keypoint struct {
	X, Y     float64
	Size     float64
	Angle    float64
	Response float64
	Octave   int
}

// Descriptor is a binary feature vector compared by Hamming distance.
type Descriptor [DescriptorSize]byte

// FeatureSet holds keypoints and their descriptors in the same order.
type FeatureSet struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Len returns the number of features.
func (f FeatureSet) Len() int { return len(f.Keypoints) }

// Empty reports whether no features were found.
func (f FeatureSet) Empty() bool { return len(f.Keypoints) == 0 }

// Concat appends other after f.
func (f FeatureSet) Concat(other FeatureSet) FeatureSet {
	if f.Empty() {
		return other
	}
	if other.Empty() {
		return f
	}
	return FeatureSet{
		Keypoints:   append(append(make([]Keypoint, 0, f.Len()+other.Len()), f.Keypoints...), other.Keypoints...),
		Descriptors: append(append(make([]Descriptor, 0, f.Len()+other.Len()), f.Descriptors...), other.Descriptors...),
	}
}

func newORB(verdict RenderVerdict, t Tuning) gocv.ORB {
	b := t.Branch(verdict)
	return gocv.NewORBWithParams(
		t.MaxFeatures,
		t.ScaleFactor,
		b.PyramidLevels,
		b.EdgeThreshold,
		0,
		2,
		gocv.ORBScoreTypeHarris,
		b.PatchSize,
		b.FastThreshold,
	)
}

// DetectFeatures runs ORB on the preprocessed image and on the segment mask
// and returns the image features followed by the mask features.
func DetectFeatures(img, mask *GrayImage, verdict RenderVerdict, t Tuning) (FeatureSet, error) {
	if img == nil || mask == nil {
		return FeatureSet{}, ErrEmptyImage
	}

	orb := newORB(verdict, t)
	defer orb.Close()

	imageFeatures, err := detect(orb, img.mat)
	if err != nil {
		return FeatureSet{}, fmt.Errorf("image features: %w", err)
	}

	maskFeatures, err := detect(orb, mask.mat)
	if err != nil {
		return FeatureSet{}, fmt.Errorf("segment features: %w", err)
	}

	return imageFeatures.Concat(maskFeatures), nil
}

func detect(orb gocv.ORB, src gocv.Mat) (FeatureSet, error) {
	noMask := gocv.NewMat()
	defer noMask.Close()

	kps, desc := orb.DetectAndCompute(src, noMask)
	defer desc.Close()

	if len(kps) == 0 || desc.Empty() {
		return FeatureSet{}, nil
	}
	if desc.Cols() != DescriptorSize || desc.Rows() != len(kps) {
		return FeatureSet{}, fmt.Errorf("unexpected descriptor matrix %dx%d for %d keypoints",
			desc.Rows(), desc.Cols(), len(kps))
	}

	raw := desc.ToBytes()
	set := FeatureSet{
		Keypoints:   make([]Keypoint, len(kps)),
		Descriptors: make([]Descriptor, len(kps)),
	}
	for i, kp := range kps {
		set.Keypoints[i] = Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
		copy(set.Descriptors[i][:], raw[i*DescriptorSize:(i+1)*DescriptorSize])
	}
	return set, nil
}
