package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"lcdmatch/comparator"
	"lcdmatch/database"
	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
	"lcdmatch/pattern"
	"lcdmatch/scanner"
	"lcdmatch/server"
	"lcdmatch/signalhandler"
	"lcdmatch/types"
	"lcdmatch/utils"
)

// required lists the flags each command cannot run without.
var required = map[string][]string{
	"compare":  {"image"},
	"classify": {"image"},
	"debug":    {"image", "out"},
	"pattern":  {"out"},
	"register": {"folder"},
	"search":   {"image"},
}

func main() {
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	args := utils.ParseArguments()
	command, hasCommand := args["command"]

	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		dbPath = customDB
	}

	debugMode := utils.BoolArg(args, "debug")
	if debugMode {
		logPath := "lcdmatch.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
	}
	defer logging.CloseLogger()

	showUsage := !hasCommand
	for _, flag := range required[command] {
		if args[flag] == "" || args[flag] == "true" {
			fmt.Printf("Error: Missing --%s for %s\n", flag, command)
			showUsage = true
		}
	}
	if showUsage {
		utils.PrintUsage(os.Stdout)
		os.Exit(1)
	}

	tuning := imageprocessor.DefaultTuning()
	if path, ok := args["tuning"]; ok && path != "" {
		t, err := imageprocessor.LoadTuning(path)
		if err != nil {
			fatalf("Error loading tuning file: %v", err)
		}
		tuning = t
		logging.LogInfo("Loaded tuning overrides from %s", path)
	}

	if command != "serve" {
		signalhandler.SetupHandler()
	}

	switch command {
	case "compare":
		handleCompareCommand(args, dbPath, tuning)
	case "classify":
		handleClassifyCommand(args, tuning)
	case "debug":
		handleDebugCommand(args, tuning)
	case "pattern":
		handlePatternCommand(args)
	case "register":
		handleRegisterCommand(args, dbPath, debugMode, tuning)
	case "list":
		handleListCommand(args, dbPath)
	case "search":
		handleSearchCommand(args, dbPath, debugMode, tuning)
	case "serve":
		handleServeCommand(args, dbPath, tuning)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage(os.Stdout)
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	logging.LogError(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	logging.CloseLogger()
	os.Exit(1)
}

func mustLoad(path string) image.Image {
	img, err := imageprocessor.LoadColorImage(path)
	if err != nil {
		fatalf("Error loading %s: %v", path, err)
	}
	return img
}

func mustOpenDatabase(dbPath string) *sql.DB {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fatalf("Database does not exist: %s. Run register command first.", dbPath)
	}
	db, err := database.OpenDatabase(dbPath)
	if err != nil {
		fatalf("Error opening database: %v", err)
	}
	return db
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("Error encoding output: %v", err)
	}
}

func handleCompareCommand(args map[string]string, dbPath string, tuning imageprocessor.Tuning) {
	referencePath := args["reference"]
	if referencePath == "" {
		name := args["name"]
		if name == "" {
			fatalf("Error: compare needs --reference=PATH or --name=NAME")
		}
		db := mustOpenDatabase(dbPath)
		ref, err := database.GetReference(db, name, args["group"])
		db.Close()
		if err != nil {
			fatalf("Error looking up reference %q: %v", name, err)
		}
		referencePath = ref.Path
	}

	cmp := comparator.New(tuning)
	defer cmp.Close()

	startTime := time.Now()
	result := cmp.CompareImages(mustLoad(args["image"]), mustLoad(referencePath))

	if utils.BoolArg(args, "json") {
		printJSON(result)
		return
	}

	fmt.Printf("Capture:    %s\n", args["image"])
	fmt.Printf("Reference:  %s\n", referencePath)
	fmt.Printf("Score:      %.2f\n", result.Score)
	fmt.Printf("Matches:    %d\n", result.Matches)
	fmt.Printf("Structural: %.4f\n", result.StructuralSimilarity)
	fmt.Printf("Spatial:    %.4f\n", result.SpatialScore)
	fmt.Printf("Rendered:   capture=%v reference=%v\n", result.IsRender1, result.IsRender2)
	if result.Error != "" {
		fmt.Printf("Error:      %s\n", result.Error)
	}
	fmt.Printf("\nTotal comparison time: %v\n", time.Since(startTime))
}

func handleClassifyCommand(args map[string]string, tuning imageprocessor.Tuning) {
	cmp := comparator.New(tuning)
	defer cmp.Close()

	stats, verdict, err := cmp.ClassifyRender(mustLoad(args["image"]))
	if err != nil {
		logging.LogWarning("Classification of %s failed: %v", args["image"], err)
	}

	if utils.BoolArg(args, "json") {
		printJSON(server.ClassifyResponse{IsRender: verdict.IsRendered(), Stats: stats})
		return
	}

	fmt.Printf("Image:          %s\n", args["image"])
	fmt.Printf("Verdict:        %s\n", verdict)
	fmt.Printf("Edge sharpness: %.4f (min %.4f)\n", stats.EdgeSharpness, tuning.MinEdgeSharpness)
	fmt.Printf("Noise std:      %.4f (max %.4f)\n", stats.NoiseStd, tuning.MaxNoiseStd)
	fmt.Printf("Histogram std:  %.4f (min %.4f)\n", stats.HistStd, tuning.MinHistStd)
}

func handleDebugCommand(args map[string]string, tuning imageprocessor.Tuning) {
	outDir := args["out"]
	if err := os.MkdirAll(outDir, 0755); err != nil {
		fatalf("Cannot create output folder %s: %v", outDir, err)
	}

	cmp := comparator.New(tuning)
	defer cmp.Close()

	img := mustLoad(args["image"])
	isRender := cmp.IsDigitalRender(img)
	fmt.Printf("Verdict: %s\n", imageprocessor.VerdictOf(isRender))

	preprocessed, err := cmp.PreprocessImage(img, isRender)
	if err != nil {
		fatalf("Preprocessing failed: %v", err)
	}
	segments, err := cmp.ExtractLCDSegments(preprocessed, isRender)
	if err != nil {
		fatalf("Segment extraction failed: %v", err)
	}

	grayImg, err := cmp.Grayscale(img)
	if err != nil {
		fatalf("Grayscale conversion failed: %v", err)
	}

	base := filepath.Base(args["image"])
	base = base[:len(base)-len(filepath.Ext(base))]
	for suffix, out := range map[string]image.Image{
		"gray":         grayImg,
		"preprocessed": preprocessed,
		"segments":     segments,
	} {
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s.png", base, suffix))
		if err := writePNG(path, out); err != nil {
			fatalf("Cannot write %s: %v", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func handlePatternCommand(args map[string]string) {
	opts := pattern.DefaultOptions()

	var err error
	if opts.Width, err = utils.IntArg(args, "width", opts.Width); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	if opts.Height, err = utils.IntArg(args, "height", opts.Height); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	if opts.Cell, err = utils.IntArg(args, "cell", opts.Cell); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	if s, ok := args["seed"]; ok {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fmt.Printf("Warning: invalid value for --seed: '%s'\n", s)
		} else {
			opts.Seed = seed
		}
	}
	opts.Noisy = utils.BoolArg(args, "noisy")

	if err := writePNG(args["out"], pattern.Generate(opts)); err != nil {
		fatalf("Cannot write %s: %v", args["out"], err)
	}
	fmt.Printf("Wrote %dx%d pattern to %s\n", opts.Width, opts.Height, args["out"])
}

func handleRegisterCommand(args map[string]string, dbPath string, debugMode bool, tuning imageprocessor.Tuning) {
	folderPath := args["folder"]
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			fatalf("Folder path does not exist: %s", folderPath)
		}
		fatalf("Cannot access folder path: %s (%v)", folderPath, err)
	}
	if !folderInfo.IsDir() {
		fatalf("Path is not a directory: %s", folderPath)
	}

	var db *sql.DB
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		db, err = database.InitDatabase(dbPath)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			logging.LogWarning("Error initializing database (attempt %d/%d): %v - retrying...", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		} else {
			fatalf("Error initializing database after %d attempts: %v", maxRetries, err)
		}
	}
	defer db.Close()

	cmp := comparator.New(tuning)
	defer cmp.Close()

	options := scanner.ScanOptions{
		FolderPath:   folderPath,
		Group:        args["group"],
		ForceRewrite: utils.BoolArg(args, "force"),
		DebugMode:    debugMode,
		MaxWorkers:   signalhandler.GetOptimalProcs(),
		Progress:     os.Stdout,
	}

	if _, err := scanner.RegisterFolder(db, cmp, options); err != nil {
		fatalf("Error registering folder: %v", err)
	}

	fmt.Printf("Database: %s\n", dbPath)
	stats, err := database.GetCatalogStats(db, options.Group)
	if err == nil && stats != nil {
		fmt.Printf("\nCatalogue:\n")
		fmt.Printf("- Total references: %d\n", stats.TotalReferences)
		fmt.Printf("- Rendered references: %d\n", stats.RenderedReferences)
		fmt.Printf("- Unique perceptual hashes: %d\n", stats.UniqueHashes)
	}
}

func handleListCommand(args map[string]string, dbPath string) {
	db := mustOpenDatabase(dbPath)
	defer db.Close()

	refs, err := database.ListReferences(db, args["group"])
	if err != nil {
		fatalf("Error listing references: %v", err)
	}

	if utils.BoolArg(args, "json") {
		if refs == nil {
			refs = []types.ReferenceInfo{}
		}
		printJSON(refs)
		return
	}

	if len(refs) == 0 {
		fmt.Println("No references registered.")
		return
	}
	for _, ref := range refs {
		kind := "photo"
		if ref.IsRender {
			kind = "render"
		}
		fmt.Printf("%-24s %-12s %4dx%-4d %-6s %s\n", ref.Name, ref.Group, ref.Width, ref.Height, kind, ref.Path)
	}
}

func handleSearchCommand(args map[string]string, dbPath string, debugMode bool, tuning imageprocessor.Tuning) {
	threshold := 70.0
	if thresholdStr, ok := args["threshold"]; ok {
		parsedThreshold, err := utils.ParseThreshold(thresholdStr)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			threshold = parsedThreshold
		}
	}

	// 0 keeps only references with identical fingerprints
	maxDistance, err := utils.IntArgMin(args, "hashdistance", 64, 0)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	db := mustOpenDatabase(dbPath)
	defer db.Close()

	cmp := comparator.New(tuning)
	defer cmp.Close()

	startTime := time.Now()
	fmt.Println("Searching for matching references...")
	if args["group"] != "" {
		fmt.Printf("Filtering by group: %s\n", args["group"])
	}

	matches, err := cmp.FindMatchingReferences(db, comparator.SearchOptions{
		Query:           mustLoad(args["image"]),
		Group:           args["group"],
		Threshold:       threshold,
		MaxHashDistance: maxDistance,
		Workers:         signalhandler.GetOptimalProcs(),
		DebugMode:       debugMode,
	})
	if err != nil {
		fatalf("Error searching references: %v", err)
	}

	fmt.Println("\nTop Matches:")
	limit := 5
	if len(matches) == 0 {
		fmt.Println("No matches found.")
	}
	for i := 0; i < limit && i < len(matches); i++ {
		fmt.Printf("%d. Reference: %s (%s)\n", i+1, matches[i].Name, matches[i].Path)
		if matches[i].Group != "" {
			fmt.Printf("   Group: %s\n", matches[i].Group)
		}
		fmt.Printf("   Score: %.2f (%d matches)\n", matches[i].Result.Score, matches[i].Result.Matches)
	}

	fmt.Printf("\nTotal search time: %v\n", time.Since(startTime))
}

func handleServeCommand(args map[string]string, dbPath string, tuning imageprocessor.Tuning) {
	addr := args["addr"]
	if addr == "" || addr == "true" {
		addr = ":8080"
	}
	timeout, err := utils.DurationArg(args, "timeout", 30*time.Second)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	var db *sql.DB
	if _, err := os.Stat(dbPath); err == nil {
		db, err = database.OpenDatabase(dbPath)
		if err != nil {
			fatalf("Error opening database: %v", err)
		}
		defer db.Close()
	} else {
		logging.LogWarning("No reference catalogue at %s, catalogue endpoints disabled", dbPath)
	}

	cmp := comparator.New(tuning)
	defer cmp.Close()

	ctx, stop := signalhandler.NotifyContext(context.Background())
	defer stop()

	if err := server.New(cmp, db, timeout).ListenAndServe(ctx, addr); err != nil && err != http.ErrServerClosed {
		fatalf("Server error: %v", err)
	}
}
