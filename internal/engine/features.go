// Completion: 100% - Feature table complete
package engine

// Feature names a capability that instruction selection or allocation may query
// before committing to an encoding.
type Feature int

const (
	FeatureBasicALU Feature = iota
	FeatureBasicAtomics
	FeatureAtomicInt64
	FeatureFP64
	FeatureInt64
	FeatureImages
	FeatureImage3DWrite
	FeatureOpenCL20
	FeatureSubgroups
	FeatureSIMD8
	FeatureSIMD16
	FeatureThreeSrcSIMD16
	FeatureNativeInt64Mul
	FeatureSplitImageFence
	FeatureQwordPointers
	FeatureSplitSend
	FeatureImm64
	FeatureWideBarrierID
	FeatureDataCache1
	FeatureMotionEstimation
	numFeatures
)

var featureNames = [numFeatures]string{
	"basic-alu", "basic-atomics", "atomic-int64", "fp64", "int64", "images",
	"image3d-write", "opencl20", "subgroups", "simd8", "simd16", "3src-simd16",
	"native-int64-mul", "split-image-fence", "qword-pointers", "split-send",
	"imm64", "wide-barrier-id", "data-cache1", "motion-estimation",
}

func (f Feature) String() string {
	if f >= 0 && f < numFeatures {
		return featureNames[f]
	}
	return "unknown"
}

// genSet is a bitmask over generations
type genSet uint32

func gens(list ...Generation) genSet {
	var s genSet
	for _, g := range list {
		s |= 1 << uint(g)
	}
	return s
}

func (s genSet) has(g Generation) bool {
	return g > GenUnknown && s&(1<<uint(g)) != 0
}

var (
	allGens    = gens(Gen6, Gen7, Gen75, Gen8, GenCHV, Gen9, GenBXT, GenKBL, GenGLK)
	gen7Up     = gens(Gen7, Gen75, Gen8, GenCHV, Gen9, GenBXT, GenKBL, GenGLK)
	gen75Up    = gens(Gen75, Gen8, GenCHV, Gen9, GenBXT, GenKBL, GenGLK)
	gen8Up     = gens(Gen8, GenCHV, Gen9, GenBXT, GenKBL, GenGLK)
	gen9Up     = gens(Gen9, GenBXT, GenKBL, GenGLK)
	bigCore8Up = gens(Gen8, Gen9, GenKBL)
)

// featureTable is immutable after package initialization
var featureTable = map[Feature]genSet{
	FeatureBasicALU:         allGens,
	FeatureBasicAtomics:     allGens,
	FeatureAtomicInt64:      gens(Gen9, GenKBL),
	FeatureFP64:             gen7Up,
	FeatureInt64:            gen8Up,
	FeatureImages:           allGens,
	FeatureImage3DWrite:     gen75Up,
	FeatureOpenCL20:         bigCore8Up | gens(GenBXT, GenGLK),
	FeatureSubgroups:        gen7Up,
	FeatureSIMD8:            allGens,
	FeatureSIMD16:           allGens,
	FeatureThreeSrcSIMD16:   gen8Up,
	FeatureNativeInt64Mul:   bigCore8Up,
	FeatureSplitImageFence:  gen9Up,
	FeatureQwordPointers:    gen8Up,
	FeatureSplitSend:        gen9Up,
	FeatureImm64:            gen8Up,
	FeatureWideBarrierID:    gen9Up,
	FeatureDataCache1:       gen75Up,
	FeatureMotionEstimation: gen9Up,
}

// Supports reports whether generation g has feature f.
// Unknown features and unknown generations are unsupported.
func Supports(g Generation, f Feature) bool {
	set, ok := featureTable[f]
	if !ok {
		return false
	}
	return set.has(g)
}

// FeaturesOf lists every feature g supports, in declaration order
func FeaturesOf(g Generation) []Feature {
	var out []Feature
	for f := Feature(0); f < numFeatures; f++ {
		if Supports(g, f) {
			out = append(out, f)
		}
	}
	return out
}
