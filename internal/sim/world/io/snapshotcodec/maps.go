package snapshotcodec

// PositiveMap copies the strictly positive entries of src; an empty result
// is nil so snapshots omit the field.
func PositiveMap(src map[string]int) map[string]int {
	if len(src) == 0 {
		return nil
	}
	dst := map[string]int{}
	for k, v := range src {
		if k != "" && v > 0 {
			dst[k] = v
		}
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

// PaletteRemap maps ids of a persisted palette onto the live palette by
// name. Names missing from the live palette are reported.
func PaletteRemap(saved []string, live map[string]uint16) (map[uint16]uint16, []string) {
	out := make(map[uint16]uint16, len(saved))
	var missing []string
	for i, name := range saved {
		id, ok := live[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[uint16(i)] = id
	}
	return out, missing
}
