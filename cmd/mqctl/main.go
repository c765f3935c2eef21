// Command mqctl creates, inspects, and pokes at a named ipcmq queue
// from the shell, for manual testing and debugging cross-process
// behavior.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/xll-gen/ipcmq"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "create":
		runCreate(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	case "recv":
		runRecv(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "rm":
		runRemove(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mqctl <create|send|recv|inspect|rm> [flags]")
}

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "segment name")
	capacity := fs.Uint("capacity", 64, "capacity in blocks")
	blockSize := fs.Uint("block-size", 256, "block size in bytes (power of two)")
	fs.Parse(args)

	q, err := shm.CreateOnly(shm.Config{
		Name:      *name,
		Capacity:  uint32(*capacity),
		BlockSize: uint32(*blockSize),
	})
	if err != nil {
		log.Fatalf("create %q: %v", *name, err)
	}
	// The creator's attachment is not released: closing the only
	// attachment would remove the segment on exit. It stays until
	// `mqctl rm` unlinks it, so later send/recv/inspect runs can open it.
	fmt.Printf("created %q capacity=%d block_size=%d\n", q.Name(), q.Capacity(), q.BlockSize())
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("name", "", "segment name")
	message := fs.String("message", "", "message to send; reads stdin if empty")
	policy := fs.String("overflow", "block", "overflow policy: block|error")
	fs.Parse(args)

	q, err := shm.OpenOnly(shm.Config{Name: *name, OverflowPolicy: parsePolicy(*policy)})
	if err != nil {
		log.Fatalf("open %q: %v", *name, err)
	}
	defer q.Close()

	payload := []byte(*message)
	if len(payload) == 0 {
		var err error
		payload, err = readStdinLine()
		if err != nil {
			log.Fatalf("read message: %v", err)
		}
	}

	if err := q.Send(payload); err != nil {
		log.Fatalf("send: %v", err)
	}
	fmt.Printf("sent %d bytes\n", len(payload))
}

func runRecv(args []string) {
	fs := flag.NewFlagSet("recv", flag.ExitOnError)
	name := fs.String("name", "", "segment name")
	bufSize := fs.Uint("buffer", 4096, "receive buffer size")
	nonBlocking := fs.Bool("nowait", false, "use try_receive instead of blocking")
	fs.Parse(args)

	q, err := shm.OpenOnly(shm.Config{Name: *name})
	if err != nil {
		log.Fatalf("open %q: %v", *name, err)
	}
	defer q.Close()

	buf := make([]byte, *bufSize)
	if *nonBlocking {
		n, ok, err := q.TryReceiveInto(buf)
		if err != nil {
			log.Fatalf("try_receive: %v", err)
		}
		if !ok {
			fmt.Println("(empty)")
			return
		}
		os.Stdout.Write(buf[:n])
		fmt.Println()
		return
	}

	n, err := q.ReceiveInto(buf)
	if err != nil {
		log.Fatalf("receive: %v", err)
	}
	os.Stdout.Write(buf[:n])
	fmt.Println()
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	name := fs.String("name", "", "segment name")
	fs.Parse(args)

	q, err := shm.OpenOnly(shm.Config{Name: *name})
	if err != nil {
		log.Fatalf("open %q: %v", *name, err)
	}
	defer q.Close()

	fmt.Printf("name=%s capacity=%d block_size=%d\n", q.Name(), q.Capacity(), q.BlockSize())
}

func runRemove(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	name := fs.String("name", "", "segment name")
	fs.Parse(args)
	shm.Remove(*name)
	fmt.Printf("removed %q\n", *name)
}

func parsePolicy(s string) shm.OverflowPolicy {
	if s == "error" {
		return shm.PolicyError
	}
	return shm.PolicyBlock
}

func readStdinLine() ([]byte, error) {
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
