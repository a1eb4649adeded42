// Package core contains the payroll connection pipeline contracts, the
// credential mode detector and the service that links, exchanges and reads
// payroll data. Provider, transport and storage adapters depend on core;
// core must not depend on them.
package core
