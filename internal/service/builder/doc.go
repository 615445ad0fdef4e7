// Package builder runs the Packer image build inside a container, so hosts
// only need podman or docker installed. Packer's own build semantics and the
// partition layout are owned by the project's .pkr.hcl file.
package builder
