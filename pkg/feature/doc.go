// Package feature defines the closed set of premium capabilities that the access gate protects.
//
// Identifiers arrive as strings from routes and query parameters. Parse converts them into
// an ID and rejects anything outside the set, so unknown identifiers never fall through to
// default upgrade content:
//
//	id, err := feature.Parse(chi.URLParam(r, "feature"))
//	if err != nil {
//		// 400 Bad Request
//	}
//	copy := feature.Benefits(id)
//
// Benefits is an exhaustive switch over the set. Adding a new ID without adding its copy
// panics at the first render, which the package tests catch by iterating All.
package feature
