package discovery

import (
	"bufio"
	"os"
	"strings"
)

// arpProcPath is the kernel's ARP table. On non-Linux systems the file is
// simply absent and ranking is skipped.
const arpProcPath = "/proc/net/arp"

// arpTable reads the local ARP cache as an ip -> mac map. Any failure
// yields an empty map; discovery works without ranking, just slower.
func arpTable() map[string]string {
	file, err := os.Open(arpProcPath)
	if err != nil {
		return nil
	}
	defer file.Close()

	macs := map[string]string{}
	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		ip, mac := fields[0], fields[3]
		if mac == "00:00:00:00:00:00" {
			continue
		}
		macs[ip] = mac
	}
	return macs
}

func hasOUI(mac, prefix string) bool {
	return mac != "" && strings.HasPrefix(strings.ToLower(mac), strings.ToLower(prefix))
}
