/*
Package quanta implements approximate nearest neighbor search over dense
float vectors using an inverted-file plus product-quantization (IVF-PQ)
design.

# Overview

Vectors are partitioned by a set of coarse centroids learned with k-means.
Each indexed document stores three binary values: its raw vector (with an
optional trailing magnitude, depending on the field format), a 2-byte code
naming its nearest coarse centroid, and an M-byte product-quantization code
compressing the residual between the vector and that centroid.

At query time an AnnQuery ranks every coarse centroid against the query
vector and keeps the closest numberOfProbes of them, producing a disjunctive
filter over the centroid codes. An AnnPQQuery then scores the candidate
documents behind that filter: it precomputes an M x 256 table of squared
distances between the residual query and every product codeword, and each
candidate is scored by summing one table lookup per byte of its stored PQ
code. Closer documents score higher (score = 1/distance).

# Quick Start

Train a model, index a few vectors and search:

	model, err := quanta.Train(context.Background(), vectors, quanta.TrainingConfig{
	    CoarseCentroids: 64,
	    SubQuantizers:   8,
	    Iterations:      10,
	    Seed:            42,
	})
	if err != nil {
	    log.Fatal(err)
	}

	field, err := quanta.NewVectorFieldType("embedding", dims, quanta.FormatMagnitude, model.Coarse, model.Quantizer)
	if err != nil {
	    log.Fatal(err)
	}

	schema := quanta.NewSchema()
	schema.AddField(field)

	index := quanta.NewIndex(schema)
	for id, v := range vectors {
	    if err := index.IndexVector(uint32(id), "embedding", v); err != nil {
	        log.Fatal(err)
	    }
	}

	results, err := index.NewSearch().
	    WithField("embedding").
	    WithQuery(query).
	    WithProbes(8).
	    WithK(10).
	    Execute()

# Training

Two interchangeable k-means variants are provided. Lloyd is the plain
exhaustive iteration. LloydSort additionally caches inter-centroid distances
after every update step and visits candidate centroids in ascending order of
distance from a vector's previous assignment, stopping as soon as the
triangle inequality proves no remaining candidate can win. Both variants
seed centroids by reservoir sampling and run a fixed iteration count.

The M sub-quantizer codebooks are trained on disjoint column slices of the
residuals, so Train runs the sub-quantizer jobs in parallel.

# Concurrency

Trained structures (CoarseCentroidSet, ProductQuantizer, VectorFieldType)
are immutable after construction and safe for unlimited concurrent readers.
The DocValues store guards its maps with a RWMutex. Queries never mutate
shared state.
*/
package quanta
