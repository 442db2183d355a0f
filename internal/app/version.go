package app

// Version is overridable at build time with -ldflags.
var Version = "1.0.0"
