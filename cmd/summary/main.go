package main

import (
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"summary-server/internal/assemblyai"
	"summary-server/internal/handlers"
	"summary-server/internal/transcribe"
	"summary-server/internal/types"
	"summary-server/internal/websocket"
	"summary-server/pkg/config"
	"summary-server/web"
)

func updateJobStatus(jobID, newStatus, progress string) {
	config.MutateJobStatus(jobID, func(status *types.JobStatus) {
		// A cancelled job stays cancelled even if the pipeline reports progress late
		if status.Cancelled && newStatus != "cancelled" {
			return
		}
		status.Status = newStatus
		if progress != "" {
			status.Progress = progress
		}
		if newStatus == "error" {
			status.Error = progress
		}
		if newStatus == "completed" || newStatus == "error" || newStatus == "cancelled" {
			now := time.Now()
			status.CompletedAt = &now
		}
	})
}

func setJobResult(jobID string, result *types.TranscriptResult, audioFile string) {
	config.MutateJobStatus(jobID, func(status *types.JobStatus) {
		status.Result = result
		status.AudioFile = audioFile
	})
}

func main() {
	// Configure logrus
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Load .env if present, then read the API keys
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment as-is")
	}
	config.LoadEnv()

	if config.YoutubeAPIKey() == "" {
		logrus.Warn("YOUTUBE_API_KEY not set, /metadata will be unavailable")
	}
	if config.AssemblyAIKey() == "" {
		logrus.Warn("ASSEMBLYAI_API_KEY not set, /transcribe will be unavailable")
	}

	// Add the go-ytdlp cache to PATH so its ffmpeg/yt-dlp binaries are found
	ytdlpCache := "/root/.cache/go-ytdlp"
	if currentPath := os.Getenv("PATH"); currentPath != "" {
		os.Setenv("PATH", ytdlpCache+":"+currentPath)
	} else {
		os.Setenv("PATH", ytdlpCache)
	}

	// Create audio directory
	if err := os.MkdirAll(config.AudioDir, 0755); err != nil {
		logrus.Fatal(err)
	}

	// Start transcription worker
	go transcribeWorker()

	// Start file watcher for audio directory synchronization
	go watchAudioDirectory()

	// Serve downloaded audio statically
	fs := http.FileServer(http.Dir(config.AudioDir))
	http.Handle("/audio/", http.StripPrefix("/audio/", fs))

	// Serve static files from the embedded filesystem
	staticFS := http.FileServer(http.FS(web.Static))
	http.Handle("/static/", staticFS)

	// API endpoints (must be before the catch-all "/" handler)
	http.HandleFunc("/extract_video_id", handlers.ExtractVideoIDHandler)
	http.HandleFunc("/metadata", handlers.MetadataHandler)
	http.HandleFunc("/captions", handlers.CaptionsHandler)
	http.HandleFunc("/summarize", handlers.SummarizeHandler)
	http.HandleFunc("/transcribe", handlers.TranscribeHandler)
	http.HandleFunc("/transcribe/", handlers.TranscribeStatusHandler)
	http.HandleFunc("/queue", handlers.QueueStatusHandler)
	http.HandleFunc("/queue/clear", handlers.ClearQueueHandler)
	http.HandleFunc("/api/state", handlers.ServerStateHandler)
	http.HandleFunc("/ws", websocket.WSHandler)

	// Retry endpoint (needs access to the jobs channel and broadcast function)
	http.HandleFunc("/retry/", func(w http.ResponseWriter, r *http.Request) {
		handlers.RetryJobHandler(w, r, config.GetTranscribeJobs(), websocket.BroadcastQueueStatus)
	})

	// Cancel endpoint
	http.HandleFunc("/cancel/", handlers.CancelJobHandler)

	// Static assets
	http.HandleFunc("/styles.css", handlers.StylesHandler)

	// Catch-all handler for the main page (must be last)
	http.HandleFunc("/", handlers.HomeHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}
	logrus.Infof("Server started on http://0.0.0.0:%s", port)
	logrus.Fatal(http.ListenAndServe("0.0.0.0:"+port, nil))
}

// transcribeWorker processes the transcription queue
func transcribeWorker() {
	logrus.Info("Transcription worker started")
	jobCount := 0

	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("Transcription worker panicked and died")
		}
	}()

	client := assemblyai.NewClient(config.AssemblyAIKey())

	for job := range config.GetTranscribeJobs() {
		jobCount++
		logrus.WithFields(logrus.Fields{
			"jobId":     job.ID,
			"videoId":   job.VideoID,
			"jobNumber": jobCount,
		}).Info("Transcription worker received job")

		// Check if job was cancelled before processing
		if jobStatus, exists := config.SnapshotJobStatuses()[job.ID]; exists && jobStatus.Cancelled {
			logrus.WithField("jobId", job.ID).Info("Job was cancelled, skipping processing")
			continue
		}

		updateJobStatus(job.ID, "processing", "Processing...")
		websocket.BroadcastQueueStatus()

		// Handle the job with error recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"jobId": job.ID,
						"panic": r,
					}).Error("Job processing panicked")

					updateJobStatus(job.ID, "error", "Processing failed")
					websocket.BroadcastQueueStatus()
				}
			}()

			// Cleanup removes completed jobs after 5 seconds.
			// Error jobs are kept so users can retry them.
			jobCleanup := func(jobID string) {
				go func() {
					time.Sleep(5 * time.Second)
					if status, exists := config.SnapshotJobStatuses()[jobID]; exists {
						if status.Status == "completed" {
							config.DeleteJobStatus(jobID)
							logrus.WithField("jobId", jobID).Info("Job cleaned up from queue")
							websocket.BroadcastQueueStatus()
						}
					}
				}()
			}

			transcribe.ProcessTranscribeJob(job, client, updateJobStatus, setJobResult, jobCleanup)
		}()

		logrus.WithField("jobId", job.ID).Info("Job processing finished, worker ready for next job")
	}
	logrus.Info("Transcription worker stopped (channel closed)")
}

// watchAudioDirectory monitors the audio directory for changes
func watchAudioDirectory() {
	logrus.Info("Audio directory watcher started")

	var lastFiles []string

	for {
		currentFiles := getAudioList()

		if !slicesEqual(lastFiles, currentFiles) {
			logrus.WithFields(logrus.Fields{
				"previousCount": len(lastFiles),
				"currentCount":  len(currentFiles),
			}).Info("Audio directory changed, broadcasting update")

			websocket.BroadcastAudioList(currentFiles)

			lastFiles = make([]string, len(currentFiles))
			copy(lastFiles, currentFiles)
		}

		time.Sleep(2 * time.Second)
	}
}

// getAudioList returns the current list of audio files, newest first
func getAudioList() []string {
	entries, err := os.ReadDir(config.AudioDir)
	if err != nil {
		return []string{}
	}

	type fileWithTime struct {
		name    string
		modTime time.Time
	}

	var filesWithTime []fileWithTime
	for _, entry := range entries {
		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			filesWithTime = append(filesWithTime, fileWithTime{
				name:    entry.Name(),
				modTime: info.ModTime(),
			})
		}
	}

	sort.Slice(filesWithTime, func(i, j int) bool {
		return filesWithTime[i].modTime.After(filesWithTime[j].modTime)
	})

	var files []string
	for _, f := range filesWithTime {
		files = append(files, f.name)
	}
	return files
}

// slicesEqual compares two string slices for equality
func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
