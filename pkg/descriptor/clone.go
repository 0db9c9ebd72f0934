package descriptor

// Clone returns a deep copy of the descriptor. Transform pipelines use it to
// honour the value semantics of GlobalFormDescriptor without sharing slices
// with the source.
func (d GlobalFormDescriptor) Clone() GlobalFormDescriptor {
	out := d
	out.Blocks = CloneBlocks(d.Blocks)
	out.Submission = d.Submission.clone()
	return out
}

// CloneBlocks deep-copies a block slice.
func CloneBlocks(blocks []BlockDescriptor) []BlockDescriptor {
	if blocks == nil {
		return nil
	}
	out := make([]BlockDescriptor, len(blocks))
	for i, block := range blocks {
		out[i] = block.Clone()
	}
	return out
}

// Clone returns a deep copy of the block.
func (b BlockDescriptor) Clone() BlockDescriptor {
	out := b
	out.Status = b.Status.clone()
	if b.Fields != nil {
		out.Fields = make([]FieldDescriptor, len(b.Fields))
		for i, field := range b.Fields {
			out.Fields[i] = field.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the field.
func (f FieldDescriptor) Clone() FieldDescriptor {
	out := f
	out.Status = f.Status.clone()
	if f.Items != nil {
		out.Items = append([]FieldItem{}, f.Items...)
	}
	if f.Validation != nil {
		out.Validation = append([]ValidationRule{}, f.Validation...)
	}
	if f.DataSource != nil {
		ds := *f.DataSource
		if f.DataSource.Auth != nil {
			auth := *f.DataSource.Auth
			ds.Auth = &auth
		}
		out.DataSource = &ds
	}
	return out
}

func (s *StatusTemplates) clone() *StatusTemplates {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

func (s SubmissionConfig) clone() SubmissionConfig {
	out := s
	if s.Headers != nil {
		out.Headers = make(map[string]string, len(s.Headers))
		for key, value := range s.Headers {
			out.Headers[key] = value
		}
	}
	if s.Auth != nil {
		auth := *s.Auth
		out.Auth = &auth
	}
	return out
}
