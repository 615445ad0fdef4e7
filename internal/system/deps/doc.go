// Package deps materializes the application's dependency environment from
// its manifest. The production implementation drives the uv binary, matching
// the uv-managed virtual environment the shipped application runs in.
package deps
