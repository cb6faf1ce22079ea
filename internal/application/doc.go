// Package application wires configuration into the deployment pipeline.
// It constructs the build step, the git publisher, the storage client,
// uploader and purge chain, and hands them to the deploy runner so the main
// package only deals with flag parsing and exit codes.
package application
