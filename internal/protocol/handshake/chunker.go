package handshake

// chunkSize stays under the transport's 2000 cap so every chunk is
// sendable as-is. Splitting is by rune so a multi-byte marker rune is
// never cut in half.
const chunkSize = 1990

func splitChunks(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}

	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
