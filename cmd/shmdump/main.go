/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Command shmdump is a diagnostic tool that attaches to an existing
// flexible-shared-memory region by name and dumps its header fields and
// per-slot status bytes. It is not part of the core library's public
// API; it is built entirely on region.Provider/HeaderView, the same way
// cmd/debug-capacity exercised the teacher's ShmRing directly.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/fherb2/flexible-shared-memory/internal/codec"
	"github.com/fherb2/flexible-shared-memory/internal/region"
)

func main() {
	name := flag.String("name", "", "region name to attach to")
	fieldCount := flag.Int("fields", 0, "number of fields (status bytes to dump per slot); 0 skips per-slot dump")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "shmdump: -name is required")
		os.Exit(2)
	}

	p := region.NewOSProvider()
	h, err := p.Open(*name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmdump: open %s: %v\n", *name, err)
		os.Exit(1)
	}
	mem, err := p.Map(h)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmdump: map %s: %v\n", *name, err)
		os.Exit(1)
	}
	defer p.Unmap(mem)
	defer p.Close(h)

	v := region.NewHeaderView(mem)

	magicOK := color.GreenString("ok")
	if v.Magic() != region.Magic {
		magicOK = color.RedString("MISMATCH got 0x%08x", v.Magic())
	}
	fmt.Printf("magic:          0x%08x (%s)\n", v.Magic(), magicOK)
	fmt.Printf("version:        %d\n", v.Version())
	fmt.Printf("slot_count:     %d\n", v.SlotCount())
	fmt.Printf("slot_size:      %d\n", v.SlotSize())
	fmt.Printf("schema_hash:    0x%016x\n", v.SchemaHash())
	fmt.Printf("write_idx:      %d\n", v.WriteIdx())
	fmt.Printf("read_hint:      %d\n", v.ReadHint())

	alive := color.RedString("false")
	if v.ProducerAlive() {
		alive = color.GreenString("true")
	}
	fmt.Printf("producer_alive: %s\n", alive)

	if *fieldCount <= 0 {
		return
	}

	fmt.Println()
	for i := 0; i < int(v.SlotCount()); i++ {
		off := region.SlotOffset(region.HeaderSize, int(v.SlotSize()), i)
		base := off + 16 // skip seq/write_id
		fmt.Printf("slot[%d]:", i)
		for f := 0; f < *fieldCount && base+f < len(mem); f++ {
			st := codec.Status(mem[base+f])
			fmt.Printf(" %s", colorizeStatus(st))
		}
		fmt.Println()
	}
}

func colorizeStatus(st codec.Status) string {
	switch {
	case st.Truncated():
		return color.YellowString("TRUNCATED")
	case st.Valid() && st.Modified():
		return color.CyanString("VALID+MOD")
	case st.Valid():
		return color.GreenString("VALID")
	case st.Unwritten():
		return color.New(color.Faint).Sprint("UNWRITTEN")
	default:
		return color.RedString("0x%02x", byte(st))
	}
}
