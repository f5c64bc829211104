// Package config defines the format-agnostic model of a pipeline definition
// and the Loader interface that produces it. Keeping the model separate from
// the HCL schema keeps the engine independent of the definition syntax.
package config
