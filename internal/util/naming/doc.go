// Package naming provides the deterministic names used for cluster artifacts.
//
// Working directories follow {data-dir}/{platform}/{cluster}, credentials live
// in {cluster-dir}/auth and remote archives are keyed {prefix/}{cluster}-{id}.zip.
// The random id keeps archives of recreated clusters from colliding.
package naming
