package disk

import "math"

const (
	BytesPerMiB int64 = 1024 * 1024
	BytesPerGiB int64 = 1024 * BytesPerMiB

	DefaultSectorSize int64 = 512

	// MaxSizeBytes is the largest whole MiB an int64 byte count holds.
	// Conversions saturate at it instead of overflowing.
	MaxSizeBytes int64 = math.MaxInt64 / BytesPerMiB * BytesPerMiB
)

func ConvertFromBytesToMiB(sizeInBytes int64) int64 {
	return clampToZero(sizeInBytes) / BytesPerMiB
}

func ConvertFromMiBToBytes(sizeInMiB int64) int64 {
	return multiplySaturating(clampToZero(sizeInMiB), BytesPerMiB)
}

// ConvertFromBytesToGiB is for display only; it loses precision.
func ConvertFromBytesToGiB(sizeInBytes int64) float64 {
	return float64(clampToZero(sizeInBytes)) / float64(BytesPerGiB)
}

func ConvertFromGiBToBytes(sizeInGiB float64) int64 {
	if sizeInGiB <= 0 || math.IsNaN(sizeInGiB) {
		return 0
	}
	if sizeInGiB >= float64(MaxSizeBytes)/float64(BytesPerGiB) {
		return MaxSizeBytes
	}
	return int64(sizeInGiB * float64(BytesPerGiB))
}

func ConvertFromBytesToSectors(sizeInBytes, sectorSize int64) int64 {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return divRoundUp(clampToZero(sizeInBytes), sectorSize)
}

func ConvertFromSectorsToBytes(sectors, sectorSize int64) int64 {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return multiplySaturating(clampToZero(sectors), sectorSize)
}

func SectorsPerMiB(sectorSize int64) int64 {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return BytesPerMiB / sectorSize
}

// AlignStartSector rounds a start sector up to the next MiB boundary. The
// first usable MiB holds the partition table, so nothing starts before it.
func AlignStartSector(startSector, sectorSize int64) int64 {
	perMiB := SectorsPerMiB(sectorSize)
	if perMiB <= 0 {
		return startSector
	}
	if startSector < perMiB {
		return perMiB
	}
	return roundUp(startSector, perMiB)
}

func roundUp(numToRound, multiple int64) int64 {
	if multiple == 0 {
		return numToRound
	}
	remainder := numToRound % multiple
	if remainder == 0 {
		return numToRound
	}
	return numToRound + multiple - remainder
}

func divRoundUp(n, d int64) int64 {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

// multiplySaturating multiplies two non-negative numbers, returning
// MaxSizeBytes when the product does not fit.
func multiplySaturating(n, factor int64) int64 {
	if factor > 0 && n > MaxSizeBytes/factor {
		return MaxSizeBytes
	}
	return n * factor
}

func clampToZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
