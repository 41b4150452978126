package version

// Version is overridden at build time with
// -ldflags "-X github.com/nftlender/backend/internal/version.Version=...".
var Version = "dev"
