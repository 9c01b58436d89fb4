package main

import (
	"context"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
)

// Installs the yt-dlp and ffmpeg binaries into the local cache. Run once
// at image build time so the server never downloads tooling at runtime.
func main() {
	logrus.Info("Fetching yt-dlp and the ffmpeg toolchain...")
	ytdlp.MustInstall(context.TODO(), nil)
	ytdlp.MustInstallFFmpeg(context.TODO(), nil)
	ytdlp.MustInstallFFprobe(context.TODO(), nil)
	logrus.Info("Audio toolchain ready")
}
