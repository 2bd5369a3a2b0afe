// assetpack is a CLI utility for building encrypted game content.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/importer"
	"github.com/Faultbox/railrush/internal/logger"
	"github.com/Faultbox/railrush/internal/packer"
	"github.com/Faultbox/railrush/pkg/crypt"
	"github.com/Faultbox/railrush/pkg/pak"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if err := logger.Init(os.Getenv("ASSETPACK_LOG"), ""); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch command {
	case "encrypt", "build":
		cmdEncrypt(args)
	case "pack":
		cmdPack(args)
	case "list", "ls":
		cmdList(args)
	case "cat":
		cmdCat(args)
	case "import":
		cmdImport(args)
	case "texture":
		cmdTexture(args)
	case "watch":
		cmdWatch(args)
	case "keygen":
		cmdKeygen(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`assetpack - encrypted content pipeline

Usage:
  assetpack <command> [options]

Commands:
  encrypt [-manifest f] <src> <dst>   Seal asset documents, copy everything else
  pack <dir> <out.pak>                Bundle a built tree into an archive
  list <file.pak> [pattern]           List archive entries
  cat <file.pak|dir> <path>           Decrypt one asset to stdout
  import [-prefix p] <model.glb> <dst> Convert glTF/GLB into asset documents
  texture <image> <out.texture>       Transcode PNG/JPEG/TGA to a WebP payload
  watch <src> <dst>                   Rebuild files as they change
  keygen <dir>                        Write a new key.bin and mask.bin

encrypt, cat and watch read the key from -key and -mask (default key.bin, mask.bin).

Examples:
  assetpack keygen keys
  assetpack import -prefix trains/loco loco.glb content
  assetpack encrypt -key keys/key.bin -mask keys/mask.bin content build
  assetpack pack build base.pak
  assetpack cat -key keys/key.bin -mask keys/mask.bin base.pak trains/loco.hierarchy`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	logger.Sync()
	os.Exit(1)
}

// keyFlags registers -key and -mask on fs and returns a loader for them.
func keyFlags(fs *flag.FlagSet) func() crypt.Key {
	keyPath := fs.String("key", "key.bin", "Obfuscated key file")
	maskPath := fs.String("mask", "mask.bin", "Key mask file")
	return func() crypt.Key {
		mk, err := crypt.LoadMaskedKey(*keyPath, *maskPath)
		if err != nil {
			fatalf("%v", err)
		}
		return mk.Reconstruct()
	}
}

func cmdEncrypt(args []string) {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	key := keyFlags(fs)
	manifest := fs.String("manifest", "", "Manifest listing files and target_files (default: seal by extension)")
	workers := fs.Int("workers", 0, "Concurrent files (0 = GOMAXPROCS)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack encrypt [-manifest file] <src> <dst>")
		os.Exit(1)
	}
	src, dst := fs.Arg(0), fs.Arg(1)
	opts := packer.Options{Key: key(), Workers: *workers}

	var (
		res packer.Result
		err error
	)
	if *manifest != "" {
		m, merr := packer.LoadManifest(*manifest)
		if merr != nil {
			fatalf("%v", merr)
		}
		res, err = packer.Build(context.Background(), src, dst, m.Jobs(), opts)
	} else {
		res, err = packer.EncryptTree(context.Background(), src, dst, opts)
	}
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Sealed %d, copied %d files (%.2f MB) into %s\n",
		res.Sealed, res.Copied, float64(res.Bytes)/(1024*1024), dst)
}

func cmdPack(args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack pack <dir> <out.pak>")
		os.Exit(1)
	}
	n, err := packer.BuildPak(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Packed %d files into %s\n", n, fs.Arg(1))
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack list <file.pak> [pattern]")
		os.Exit(1)
	}

	archive, err := pak.Open(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	defer archive.Close()

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, f := range archive.List() {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, strings.ToLower(filepath.Base(f)))
			if !matched && !strings.Contains(strings.ToLower(f), pattern) {
				continue
			}
		}
		e, _ := archive.Stat(f)
		fmt.Printf("%10d  %s\n", e.Size, f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", count)
	}
}

func cmdCat(args []string) {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	key := keyFlags(fs)
	raw := fs.Bool("raw", false, "Print the stored bytes without decrypting")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack cat [-raw] <file.pak|dir> <path>")
		os.Exit(1)
	}

	var src assets.Source
	if info, err := os.Stat(fs.Arg(0)); err == nil && info.IsDir() {
		src = assets.DirSource{Root: fs.Arg(0)}
	} else {
		as := assets.NewArchiveSource()
		if err := as.AddArchive(fs.Arg(0)); err != nil {
			fatalf("%v", err)
		}
		defer as.Close()
		src = as
	}

	data, err := src.Read(context.Background(), fs.Arg(1))
	if err != nil {
		fatalf("%v", err)
	}
	if !*raw {
		if data, err = crypt.Open(data, key()); err != nil {
			fatalf("decrypting %s: %v", fs.Arg(1), err)
		}
	}
	os.Stdout.Write(data)
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	prefix := fs.String("prefix", "", "Content path for the outputs (default: file name without extension)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack import [-prefix path] <model.gltf|glb> <dst>")
		os.Exit(1)
	}
	in, dst := fs.Arg(0), fs.Arg(1)
	if *prefix == "" {
		*prefix = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	}

	res, err := importer.Import(in, *prefix)
	if err != nil {
		fatalf("%v", err)
	}
	if err := res.Write(dst); err != nil {
		fatalf("%v", err)
	}
	for _, p := range res.Paths() {
		fmt.Println(p)
	}
	fmt.Fprintf(os.Stderr, "\nImported %s as %s\n", in, res.Model)
}

func cmdTexture(args []string) {
	fs := flag.NewFlagSet("texture", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack texture <image> <out.texture>")
		os.Exit(1)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	out, err := packer.Transcode(data)
	if err != nil {
		fatalf("%s: %v", fs.Arg(0), err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.Arg(1)), 0755); err != nil {
		fatalf("%v", err)
	}
	if err := os.WriteFile(fs.Arg(1), out, 0644); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s (%d -> %d bytes)\n", fs.Arg(1), len(data), len(out))
}

func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	key := keyFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assetpack watch <src> <dst>")
		os.Exit(1)
	}
	src, dst := fs.Arg(0), fs.Arg(1)
	opts := packer.Options{Key: key()}

	if _, err := packer.EncryptTree(context.Background(), src, dst, opts); err != nil {
		fatalf("%v", err)
	}
	w, err := packer.NewWatcher(src, dst, opts)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", src)
	err = w.Run(ctx, func(job packer.Job, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rebuilding %s: %v\n", job.Rel, err)
			return
		}
		fmt.Printf("Rebuilt: %s\n", job.Rel)
	})
	if err != nil {
		fatalf("%v", err)
	}
}

func cmdKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	fs.Parse(args)

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	var key crypt.Key
	if _, err := rand.Read(key[:]); err != nil {
		fatalf("%v", err)
	}
	mk, err := crypt.Split(key)
	if err != nil {
		fatalf("%v", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fatalf("%v", err)
	}
	keyPath, maskPath := filepath.Join(dir, "key.bin"), filepath.Join(dir, "mask.bin")
	if err := os.WriteFile(keyPath, mk.Obfuscated[:], 0600); err != nil {
		fatalf("%v", err)
	}
	if err := os.WriteFile(maskPath, mk.Mask[:], 0600); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s and %s\n", keyPath, maskPath)
}
