// Package voxel turns closed triangle meshes into occupancy grids and
// derives the support structure a part needs when printed along +z.
//
// Rasterize and SynthesizeSupport are pure functions of their inputs and
// keep no shared state, so independent parts can be processed concurrently
// without locking.
package voxel
