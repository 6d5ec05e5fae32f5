// Package blobstore manages the on-disk media store: uploaded inputs,
// processed outputs, and per-job staging scratch space. Files are addressed
// by locators of the form /storage/<area>/<name>, which double as the URL
// paths the HTTP server exposes them under.
package blobstore
