// Package supervisor controls the supervised application service.
// The production implementation shells out to systemctl; callers accept the
// Supervisor interface so tests can substitute fakes.
package supervisor
