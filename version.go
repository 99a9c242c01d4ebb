package esqlc

// Version is reported by the CLI and stamped into the output banner unless
// regression mode is on.
const Version = "0.1.0"
