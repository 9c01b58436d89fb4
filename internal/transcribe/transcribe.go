package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
	ffmpeg_go "github.com/u2takey/ffmpeg-go"
	"summary-server/internal/assemblyai"
	"summary-server/internal/state"
	"summary-server/internal/types"
	"summary-server/internal/websocket"
	"summary-server/pkg/config"
)

// jobTimeout bounds the whole download+transcribe cycle for one job
const jobTimeout = 30 * time.Minute

var (
	// Example ffmpeg stderr line:
	// size=   12345kB time=00:01:23.45 bitrate=1234.5kbits/s speed=1.23x
	conversionTimeRegex  = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2}\.\d{2})`)
	conversionSpeedRegex = regexp.MustCompile(`speed=\s*(\d+\.?\d*)x`)
)

// GenerateJobID generates a unique job ID
func GenerateJobID() string {
	return fmt.Sprintf("tr_%d_%d", time.Now().Unix(), time.Now().Nanosecond())
}

// CheckAndUpdateYtDlp checks if yt-dlp is up to date and updates it if necessary
func CheckAndUpdateYtDlp(ctx context.Context) error {
	logrus.Info("Starting yt-dlp update check...")

	// Update global state and notify frontend
	state.SetYtdlpStatus("checking", "Checking yt-dlp version...")
	websocket.BroadcastToAll(types.WSMessage{
		Type:    "ytdlp_update",
		Message: "Checking yt-dlp version...",
	})

	cmd := ytdlp.New()

	// Run update - this will check for updates and update if needed
	result, err := cmd.Update(ctx)
	if err != nil {
		logrus.WithError(err).Error("yt-dlp update failed")
		state.SetYtdlpStatus("error", fmt.Sprintf("yt-dlp update error: %v", err))
		websocket.BroadcastToAll(types.WSMessage{
			Type:    "ytdlp_update",
			Message: fmt.Sprintf("yt-dlp update error: %v", err),
		})
		return err
	}

	// Check the result to see if an update was performed
	if result != nil && result.ExitCode == 0 {
		stdout := strings.TrimSpace(result.Stdout)
		logrus.WithFields(logrus.Fields{
			"exit_code": result.ExitCode,
			"stdout":    stdout,
		}).Info("yt-dlp update result")
		if strings.Contains(stdout, "Updated yt-dlp to") {
			state.SetYtdlpStatus("updated", "yt-dlp updated successfully")
			websocket.BroadcastToAll(types.WSMessage{
				Type:    "ytdlp_update",
				Message: "yt-dlp updated successfully",
			})
		} else if strings.Contains(stdout, "yt-dlp is up to date") {
			state.SetYtdlpStatus("uptodate", "yt-dlp is already up to date")
			websocket.BroadcastToAll(types.WSMessage{
				Type:    "ytdlp_update",
				Message: "yt-dlp is already up to date",
			})
		}
	} else {
		logrus.WithFields(logrus.Fields{
			"result": result,
		}).Warn("yt-dlp update result was unexpected")
	}

	logrus.Info("yt-dlp update check completed")
	return nil
}

// ResultSetter stores a finished transcript on a job status
type ResultSetter func(jobID string, result *types.TranscriptResult, audioFile string)

// ProcessTranscribeJob runs one job through the whole pipeline:
// audio download, optional m4a conversion, AssemblyAI upload, submit and poll.
func ProcessTranscribeJob(job *types.TranscribeJob, client *assemblyai.Client, updateStatus func(string, string, string), setResult ResultSetter, cleanup func(string)) {
	if jobCancelled(job) {
		logrus.WithField("jobId", job.ID).Info("Job cancelled before processing")
		updateStatus(job.ID, "cancelled", "Cancelled")
		websocket.BroadcastQueueStatus()
		if cleanup != nil {
			cleanup(job.ID)
		}
		return
	}
	logrus.WithFields(logrus.Fields{
		"jobId":   job.ID,
		"videoId": job.VideoID,
	}).Info("Processing transcription job")

	// Check and update yt-dlp before downloading
	if err := CheckAndUpdateYtDlp(context.Background()); err != nil {
		failJob(job.ID, "yt-dlp check/update failed", updateStatus, cleanup)
		return
	}

	parent := context.Background()
	if job.CancelContext != nil {
		parent = job.CancelContext
	}
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	// Download the audio track
	websocket.BroadcastToSubscribers(job.ID, types.WSMessage{
		Type:    "progress",
		JobID:   job.ID,
		Message: "Downloading audio...",
	})
	updateStatus(job.ID, "downloading", "Downloading audio...")
	websocket.BroadcastQueueStatus()

	audioPath := filepath.Join(config.AudioDir, job.ID+".m4a")
	if err := downloadAudio(ctx, job, audioPath, updateStatus); err != nil {
		if finishCancelled(job, updateStatus, cleanup) {
			logrus.WithField("jobId", job.ID).Info("Job cancelled during audio download")
			return
		}
		logrus.WithError(err).WithField("jobId", job.ID).Error("Audio download failed")
		failJob(job.ID, fmt.Sprintf("yt-dlp error: %v", err), updateStatus, cleanup)
		return
	}

	logrus.WithFields(logrus.Fields{
		"jobId":     job.ID,
		"audioPath": audioPath,
	}).Info("Audio downloaded successfully")

	// Upload to AssemblyAI
	updateStatus(job.ID, "uploading", "Uploading audio for transcription...")
	websocket.BroadcastToSubscribers(job.ID, types.WSMessage{
		Type:    "progress",
		JobID:   job.ID,
		Message: "Uploading audio for transcription...",
	})
	websocket.BroadcastQueueStatus()

	audioFile, err := os.Open(audioPath)
	if err != nil {
		failJob(job.ID, fmt.Sprintf("Cannot open downloaded audio: %v", err), updateStatus, cleanup)
		return
	}

	uploadURL, err := client.Upload(ctx, audioFile)
	audioFile.Close()
	if err != nil {
		if finishCancelled(job, updateStatus, cleanup) {
			return
		}
		logrus.WithError(err).WithField("jobId", job.ID).Error("AssemblyAI upload failed")
		failJob(job.ID, fmt.Sprintf("Upload error: %v", err), updateStatus, cleanup)
		return
	}

	// Request the transcription
	transcriptID, err := client.Submit(ctx, uploadURL)
	if err != nil {
		if finishCancelled(job, updateStatus, cleanup) {
			return
		}
		logrus.WithError(err).WithField("jobId", job.ID).Error("AssemblyAI submit failed")
		failJob(job.ID, fmt.Sprintf("Transcription request error: %v", err), updateStatus, cleanup)
		return
	}

	logrus.WithFields(logrus.Fields{
		"jobId":        job.ID,
		"transcriptId": transcriptID,
	}).Info("Transcription submitted, polling for completion")

	updateStatus(job.ID, "transcribing", "Transcription in progress...")
	websocket.BroadcastToSubscribers(job.ID, types.WSMessage{
		Type:    "progress",
		JobID:   job.ID,
		Message: "Transcription in progress...",
	})
	websocket.BroadcastQueueStatus()

	transcript, err := client.Poll(ctx, transcriptID, assemblyai.DefaultPollInterval)
	if err != nil {
		if finishCancelled(job, updateStatus, cleanup) {
			return
		}
		logrus.WithError(err).WithField("jobId", job.ID).Error("Transcription polling failed")
		failJob(job.ID, fmt.Sprintf("Transcription error: %v", err), updateStatus, cleanup)
		return
	}

	result := &types.TranscriptResult{
		Transcript:    transcript.Text,
		Paragraphs:    client.Paragraphs(ctx, transcriptID),
		SpeakerLabels: transcript.Utterances,
	}
	if result.Paragraphs == nil {
		result.Paragraphs = []types.Paragraph{}
	}
	if result.SpeakerLabels == nil {
		result.SpeakerLabels = []types.Utterance{}
	}

	audioName := filepath.Base(audioPath)
	if setResult != nil {
		setResult(job.ID, result, audioName)
	}

	updateStatus(job.ID, "completed", "Transcription completed")
	websocket.BroadcastQueueStatus()

	websocket.BroadcastToSubscribers(job.ID, types.WSMessage{
		Type:    "done",
		JobID:   job.ID,
		File:    audioName,
		Message: "Transcription completed",
		Result:  result,
	})

	PruneAudio()

	if cleanup != nil {
		cleanup(job.ID)
	}
}

// downloadAudio fetches the best m4a audio stream for the job's video.
// When no native m4a stream exists it falls back to the best available
// audio and converts it with ffmpeg.
func downloadAudio(ctx context.Context, job *types.TranscribeJob, audioPath string, updateStatus func(string, string, string)) error {
	dl := ytdlp.New().
		Format("bestaudio[ext=m4a]").
		NoPlaylist().
		Output(audioPath).
		Progress().
		Newline()

	attachProgress(dl, job.ID, updateStatus)

	_, err := dl.Run(ctx, job.WatchURL())
	if err == nil {
		return nil
	}
	if !isFormatUnavailable(err) {
		return err
	}

	logrus.WithField("jobId", job.ID).Warn("No m4a audio stream, falling back to bestaudio + ffmpeg")

	// Download whatever audio is available, then convert
	sourceTemplate := filepath.Join(config.AudioDir, job.ID+".source.%(ext)s")
	fallback := ytdlp.New().
		Format("bestaudio").
		NoPlaylist().
		Output(sourceTemplate).
		Progress().
		Newline()

	attachProgress(fallback, job.ID, updateStatus)

	if _, err := fallback.Run(ctx, job.WatchURL()); err != nil {
		return err
	}

	sourcePath, err := findSourceFile(config.AudioDir, job.ID)
	if err != nil {
		return err
	}
	defer os.Remove(sourcePath)

	updateStatus(job.ID, "converting", "Converting audio to m4a...")
	websocket.BroadcastToSubscribers(job.ID, types.WSMessage{
		Type:    "progress",
		JobID:   job.ID,
		Message: "Converting audio to m4a...",
	})

	return convertToM4A(ctx, job.ID, sourcePath, audioPath)
}

// attachProgress wires a throttled yt-dlp progress callback to the job
func attachProgress(dl *ytdlp.Command, jobID string, updateStatus func(string, string, string)) {
	var lastBroadcast time.Time
	var lastPercent float64

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		var progressMsg string

		switch update.Status {
		case ytdlp.ProgressStatusDownloading:
			speed := ""
			if !update.Started.IsZero() && update.DownloadedBytes > 0 {
				elapsed := time.Since(update.Started).Seconds()
				if elapsed > 0 {
					bytesPerSec := float64(update.DownloadedBytes) / elapsed
					speed = fmt.Sprintf(" @ %.2f MiB/s", bytesPerSec/1024/1024)
				}
			}

			eta := ""
			if update.ETA() > 0 {
				eta = fmt.Sprintf(" ETA %s", update.ETA().Round(time.Second))
			}

			sizeInfo := ""
			if update.TotalBytes > 0 {
				sizeInfo = fmt.Sprintf(" (%.2f/%.2f MiB)",
					float64(update.DownloadedBytes)/1024/1024,
					float64(update.TotalBytes)/1024/1024)
			} else if update.DownloadedBytes > 0 {
				sizeInfo = fmt.Sprintf(" (%.2f MiB)", float64(update.DownloadedBytes)/1024/1024)
			}

			progressMsg = fmt.Sprintf("Downloading: %s%s%s%s",
				update.PercentString(), sizeInfo, speed, eta)

		case ytdlp.ProgressStatusFinished:
			progressMsg = "Download finished, post-processing..."

		case ytdlp.ProgressStatusError:
			progressMsg = "Download error"

		case ytdlp.ProgressStatusStarting:
			progressMsg = "Starting download..."

		default:
			progressMsg = fmt.Sprintf("Status: %s @ %s", update.Status, update.PercentString())
		}

		updateStatus(jobID, "downloading", progressMsg)

		// Throttle broadcasts
		currentPercent := update.Percent()
		shouldBroadcast := time.Since(lastBroadcast) >= 1*time.Second ||
			currentPercent-lastPercent >= 1.0 ||
			update.Status != ytdlp.ProgressStatusDownloading

		if shouldBroadcast {
			websocket.BroadcastToSubscribers(jobID, types.WSMessage{
				Type:    "progress",
				JobID:   jobID,
				Message: progressMsg,
				Percent: currentPercent,
			})
			lastBroadcast = time.Now()
			lastPercent = currentPercent
		}
	})
}

// isFormatUnavailable reports whether yt-dlp rejected the requested format
func isFormatUnavailable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Requested format is not available")
}

// findSourceFile locates the fallback download for a job, whatever its extension
func findSourceFile(dir, jobID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	prefix := jobID + ".source."
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("fallback audio file not found for job %s", jobID)
}

// convertToM4A re-encodes the source audio to an AAC m4a file with ffmpeg
func convertToM4A(cancelCtx context.Context, jobID, sourcePath, destPath string) error {
	stderrBuf := &bytes.Buffer{}
	stderrReader, stderrWriter := io.Pipe()

	progressDone := make(chan bool)
	go parseFFmpegProgress(stderrReader, jobID, progressDone, cancelCtx)

	audioInput := ffmpeg_go.Input(sourcePath)
	audioStream := audioInput.Audio()

	outputStream := ffmpeg_go.OutputContext(cancelCtx, []*ffmpeg_go.Stream{audioStream}, destPath,
		ffmpeg_go.KwArgs{
			"vn":  "",
			"c:a": "aac",
			"b:a": "160k",
		}).
		WithErrorOutput(io.MultiWriter(stderrBuf, stderrWriter)).
		OverWriteOutput()

	err := outputStream.Run(ffmpeg_go.SeparateProcessGroup())

	stderrWriter.Close()
	<-progressDone

	if err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w", err)
	}
	return nil
}

// parseFFmpegProgress parses ffmpeg stderr output for progress information
func parseFFmpegProgress(reader io.Reader, jobID string, done chan bool, cancelCtx context.Context) {
	defer func() { done <- true }()

	scanner := bufio.NewScanner(reader)
	lastBroadcast := time.Now()

	for scanner.Scan() {
		if cancelCtx != nil {
			select {
			case <-cancelCtx.Done():
				logrus.WithField("jobId", jobID).Info("FFmpeg progress parsing cancelled")
				return
			default:
			}
		}

		line := scanner.Text()

		// Only broadcast every 2 seconds to avoid overwhelming the clients
		if time.Since(lastBroadcast) < 2*time.Second {
			continue
		}

		if progressMsg, ok := formatConversionProgress(line); ok {
			websocket.BroadcastToSubscribers(jobID, types.WSMessage{
				Type:    "progress",
				JobID:   jobID,
				Message: progressMsg,
			})

			lastBroadcast = time.Now()

			logrus.WithFields(logrus.Fields{
				"jobId":    jobID,
				"progress": progressMsg,
			}).Debug("ffmpeg progress update")
		}
	}

	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Warn("Error reading ffmpeg progress")
	}
}

// formatConversionProgress turns one line of ffmpeg stderr into a progress
// message. Returns false for lines carrying no time information.
func formatConversionProgress(line string) (string, bool) {
	timeMatch := conversionTimeRegex.FindStringSubmatch(line)
	if len(timeMatch) == 0 {
		return "", false
	}

	progressMsg := fmt.Sprintf("Converting: %s:%s:%s", timeMatch[1], timeMatch[2], timeMatch[3])

	if speedMatch := conversionSpeedRegex.FindStringSubmatch(line); len(speedMatch) > 1 {
		progressMsg += fmt.Sprintf(" (speed: %sx)", speedMatch[1])
	}

	return progressMsg, true
}

// failJob marks a job as errored and notifies clients
func failJob(jobID, message string, updateStatus func(string, string, string), cleanup func(string)) {
	websocket.BroadcastToSubscribers(jobID, types.WSMessage{
		Type:    "error",
		JobID:   jobID,
		Message: message,
	})
	updateStatus(jobID, "error", message)
	websocket.BroadcastQueueStatus()
	if cleanup != nil {
		cleanup(jobID)
	}
}

// finishCancelled settles a job as cancelled when its context was cancelled
// mid-stage. Returns false when the job is still live.
func finishCancelled(job *types.TranscribeJob, updateStatus func(string, string, string), cleanup func(string)) bool {
	if !cancelledErr(job) {
		return false
	}
	updateStatus(job.ID, "cancelled", "Cancelled")
	websocket.BroadcastQueueStatus()
	if cleanup != nil {
		cleanup(job.ID)
	}
	return true
}

// jobCancelled reports whether the job's cancel context is already done
func jobCancelled(job *types.TranscribeJob) bool {
	if job.CancelContext == nil {
		return false
	}
	select {
	case <-job.CancelContext.Done():
		return true
	default:
		return false
	}
}

// cancelledErr reports whether the job was cancelled by the user
func cancelledErr(job *types.TranscribeJob) bool {
	return job.CancelContext != nil && job.CancelContext.Err() == context.Canceled
}

// PruneAudio removes old audio files, keeping only the most recent ones
func PruneAudio() {
	entries, err := os.ReadDir(config.AudioDir)
	if err != nil {
		logrus.WithError(err).Error("PruneAudio failed to read audio directory")
		return
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}

	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isAudioFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(files) <= config.AudioKeepCount {
		return
	}

	// Sort by modification time (oldest first)
	for i := 0; i < len(files)-1; i++ {
		for j := i + 1; j < len(files); j++ {
			if files[i].modTime.After(files[j].modTime) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	for _, fi := range files[:len(files)-config.AudioKeepCount] {
		os.Remove(filepath.Join(config.AudioDir, fi.name))
	}
}

// isAudioFile filters for the audio container formats the pipeline produces
func isAudioFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".m4a") ||
		strings.HasSuffix(lower, ".mp3") ||
		strings.HasSuffix(lower, ".webm") ||
		strings.HasSuffix(lower, ".opus")
}
