package quanta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrInsufficientTrainingData is returned when the training set is too small
// for the requested model shape.
var ErrInsufficientTrainingData = errors.New("not enough training vectors")

// TrainingConfig describes one training run.
type TrainingConfig struct {
	// CoarseCentroids is the number of coarse partitions to learn
	// (1..MaxCoarseCentroids).
	CoarseCentroids int

	// SubQuantizers is M, the number of product sub-quantizers. Dims must
	// be divisible by it. Defaults to NumSubQuantizers.
	SubQuantizers int

	// Iterations is the fixed k-means iteration count for both the coarse
	// and the product codebook training. Defaults to DefaultIterations.
	Iterations int

	// Accelerated selects the triangle-inequality pruned clustering
	// variant (LloydSort) instead of plain Lloyd. The accelerated variant
	// trades memory for speed at large centroid counts.
	Accelerated bool

	// Seed seeds the reservoir sampling. Runs with the same seed, data and
	// config are reproducible. Sub-quantizer jobs derive their own seeds
	// from it so they stay deterministic despite running in parallel.
	Seed int64

	// Logger receives structured training progress. Nil discards logs.
	Logger *slog.Logger
}

// TrainedModel is the output of Train: everything a VectorFieldType needs.
type TrainedModel struct {
	Coarse    *CoarseCentroidSet
	Quantizer *ProductQuantizer
}

// Train learns the coarse centroid set and the product codebooks for one
// vector field from a representative sample.
//
// The pipeline is the IVF-PQ training recipe:
//
//  1. k-means over the raw vectors learns CoarseCentroids partitions
//  2. every vector is assigned to its nearest coarse centroid
//  3. residuals (vector - centroid) are computed
//  4. for each of the M sub-spaces, k-means with k=256 over the residual
//     sub-vectors learns that sub-quantizer's codebook
//
// Step 4 runs the M jobs in parallel: they read disjoint column slices and
// share no mutable state. The context cancels queued jobs between steps;
// each individual k-means run is a bounded CPU loop.
func Train(ctx context.Context, vectors [][]float32, cfg TrainingConfig) (*TrainedModel, error) {
	if cfg.SubQuantizers == 0 {
		cfg.SubQuantizers = NumSubQuantizers
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = DefaultIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if len(vectors) == 0 {
		return nil, ErrNoTrainingVectors
	}
	dims := len(vectors[0])
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDims, dims)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("training vector %d has %d dims, want %d", i, len(v), dims)
		}
	}
	if cfg.CoarseCentroids < 1 || cfg.CoarseCentroids > MaxCoarseCentroids {
		return nil, fmt.Errorf("coarse centroid count must be in [1, %d], got %d", MaxCoarseCentroids, cfg.CoarseCentroids)
	}
	if dims%cfg.SubQuantizers != 0 {
		return nil, fmt.Errorf("%w: dims=%d, m=%d", ErrDimsNotDivisible, dims, cfg.SubQuantizers)
	}
	if len(vectors) < cfg.CoarseCentroids || len(vectors) < ProductCentroidCount {
		return nil, fmt.Errorf("%w: have %d, need at least max(%d coarse, %d product) vectors",
			ErrInsufficientTrainingData, len(vectors), cfg.CoarseCentroids, ProductCentroidCount)
	}

	cluster := Lloyd
	if cfg.Accelerated {
		cluster = LloydSort
	}

	// Step 1: coarse partitions.
	start := time.Now()
	coarseCentroids, _, err := cluster(vectors, cfg.CoarseCentroids, cfg.Iterations, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, fmt.Errorf("coarse clustering: %w", err)
	}
	coarse, err := NewCoarseCentroidSet(coarseCentroids)
	if err != nil {
		return nil, err
	}
	logger.Info("trained coarse centroids",
		"centroids", cfg.CoarseCentroids,
		"vectors", len(vectors),
		"dims", dims,
		"accelerated", cfg.Accelerated,
		"took", time.Since(start))

	// Steps 2-3: residuals against the final coarse assignment.
	residuals := make([][]float32, len(vectors))
	for i, v := range vectors {
		residuals[i] = subtract(v, coarse.Centroid(int(coarse.Nearest(v))))
	}

	// Step 4: per-sub-space codebooks, in parallel. Sub-space m trains on
	// columns [m*dsub, (m+1)*dsub) of every residual with a seed derived
	// from the run seed, so the result does not depend on scheduling.
	m := cfg.SubQuantizers
	dsub := dims / m
	codebooks := make([][][]float32, m)

	group, ctx := errgroup.WithContext(ctx)
	for mi := 0; mi < m; mi++ {
		mi := mi
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			subStart := time.Now()
			subVectors := make([][]float32, len(residuals))
			for i, r := range residuals {
				subVectors[i] = r[mi*dsub : (mi+1)*dsub]
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(mi) + 1))
			centroids, _, err := cluster(subVectors, ProductCentroidCount, cfg.Iterations, rng)
			if err != nil {
				return fmt.Errorf("sub-quantizer %d: %w", mi, err)
			}
			codebooks[mi] = centroids
			logger.Debug("trained product codebook",
				"sub_quantizer", mi,
				"codewords", ProductCentroidCount,
				"sub_dims", dsub,
				"took", time.Since(subStart))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	quantizer, err := NewProductQuantizer(dims, m, codebooks)
	if err != nil {
		return nil, err
	}
	logger.Info("trained product quantizer", "sub_quantizers", m, "sub_dims", dsub)

	return &TrainedModel{Coarse: coarse, Quantizer: quantizer}, nil
}
