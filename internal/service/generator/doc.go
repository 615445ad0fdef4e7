// Package generator stamps a new appliance project from the embedded
// template tree: example application, dependency manifest, systemd unit,
// updater settings and the Packer build description, all named after the
// target application.
package generator
