// Package model defines the geometry description consumed by the kernel.
// A description is an immutable DAG of sketches, 2D differences, sweeps,
// transforms, booleans and groups, plus the parameter map it was
// evaluated with.
package model
