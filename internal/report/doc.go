// Package report renders training progress and trajectory comparisons.
// [Terminal] draws ASCII charts to a writer; [File] saves PNG, SVG or PDF
// figures. Both implement [Sink].
package report
