package bind_group_provider

// BufferWrite stages bytes for one buffer binding of a BindGroupProvider.
// Writes are applied in order by the renderer's queue, so a later write to an overlapping range wins.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// WholeBuffer stages data at offset 0 of the buffer at binding.
//
// Parameters:
//   - provider: the provider owning the buffer
//   - binding: the buffer's binding index
//   - data: the bytes to upload
//
// Returns:
//   - BufferWrite: the staged write
func WholeBuffer(provider BindGroupProvider, binding int, data []byte) BufferWrite {
	return BufferWrite{Provider: provider, Binding: binding, Data: data}
}

// Empty reports whether the write has nothing to upload or nowhere to put it.
func (w BufferWrite) Empty() bool {
	return w.Provider == nil || len(w.Data) == 0
}
