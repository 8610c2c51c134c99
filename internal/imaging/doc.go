// Package imaging holds the raster side of the optimiser: the ImageState
// threaded through a pipeline run, the format codec registry, raster
// transforms, the DSSIM metric and the decoded-source cache.
//
// # Codecs
//
// DefaultRegistry wires one adapter per format:
//   - jpeg: jpegli encoder, alpha flattened onto white. The fallback for
//     unknown targets.
//   - png: deterministic median-cut palette sized by quality, then
//     best-compression palette PNG.
//   - webp: chai2010/webp, lossless at quality 100 and lossy otherwise.
//   - avif: gen2brain/avif with quality and speed.
//   - gif: re-emits the frames of the loaded animation with infinite loop,
//     or a single quantized frame when there is no GIF source.
//   - bmp, tiff: decode only.
//
// Decoded rasters are normalised to *image.NRGBA.
//
// # Invariant
//
// ImageState.Encoded is either empty or the exact encoding of Pixels in
// Format. Transforms never write into an existing raster; they return a new
// one, which callers install with SetPixels.
package imaging
